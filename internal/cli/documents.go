package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// contentTypes maps file extensions to the MIME types the server accepts.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".json": "application/json",
	".txt":  "text/plain",
}

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a document",
	Long:  `Uploads a file. Re-uploading a file with the same name replaces the stored document.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage stored documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsGet,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

var (
	uploadType string
	listLimit  int
	listOffset int
)

func init() {
	uploadCmd.Flags().StringVarP(&uploadType, "type", "t", "", "content type (default: derived from the file extension)")
	documentsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum number of documents")
	documentsListCmd.Flags().IntVar(&listOffset, "offset", 0, "number of documents to skip")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsGetCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	contentType := uploadType
	if contentType == "" {
		ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return fmt.Errorf("cannot infer content type of %s, pass --type", path)
		}
		contentType = ct
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	meta, err := apiClient.Upload(cmd.Context(), filepath.Base(path), contentType, data)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	cmd.Printf("Uploaded %s\n\n", meta.FileName)
	printMetadata(cmd, meta.DocumentID, meta.FileType, meta.UploadTimestamp, meta.TotalChunks, meta.AdditionalInfo)
	return nil
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	docs, err := apiClient.ListDocuments(cmd.Context(), listLimit, listOffset)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents found")
		return nil
	}
	for _, d := range docs {
		cmd.Printf("  %s  %-40s  %3d chunks  %s\n", d.DocumentID, d.FileName, d.TotalChunks, d.UploadTimestamp)
	}
	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentsGet(cmd *cobra.Command, args []string) error {
	meta, err := apiClient.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	cmd.Printf("Document: %s\n\n", meta.FileName)
	printMetadata(cmd, meta.DocumentID, meta.FileType, meta.UploadTimestamp, meta.TotalChunks, meta.AdditionalInfo)
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if err := apiClient.DeleteDocument(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}

func printMetadata(cmd *cobra.Command, id, fileType, uploaded string, chunks int, info map[string]any) {
	cmd.Printf("  ID:       %s\n", id)
	cmd.Printf("  Type:     %s\n", fileType)
	cmd.Printf("  Uploaded: %s\n", uploaded)
	cmd.Printf("  Chunks:   %d\n", chunks)
	if len(info) > 0 {
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		cmd.Println("\n  Info:")
		for _, k := range keys {
			cmd.Printf("    %s: %v\n", k, info[k])
		}
	}
}
