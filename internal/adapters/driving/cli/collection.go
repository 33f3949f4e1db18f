package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/pdfkb/internal/core/domain"
)

var (
	infoJSON    bool
	chunksJSON  bool
	deleteChunk int
	clearYes    bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show collection statistics",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

var chunksCmd = &cobra.Command{
	Use:   "chunks [filename]",
	Short: "List the stored chunks of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunks,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [filename]",
	Short: "Delete a document or one of its chunks",
	Long: `Deletes every chunk of the document, or only the chunk given by --chunk.
Fails when nothing matched.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var updateCmd = &cobra.Command{
	Use:   "update [filename] [chunk-id] [content]",
	Short: "Replace the content of one chunk",
	Long: `Replaces the text of a stored chunk and re-embeds it. The chunk keeps
its metadata.`,
	Args: cobra.ExactArgs(3),
	RunE: runUpdate,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored chunk",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output as JSON")
	chunksCmd.Flags().BoolVar(&chunksJSON, "json", false, "output as JSON")
	deleteCmd.Flags().IntVarP(&deleteChunk, "chunk", "c", -1, "delete only this chunk id")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(clearCmd)
}

func runInfo(cmd *cobra.Command, _ []string) error {
	store, err := requireVectorStore(cmd.Context())
	if err != nil {
		return hint(err)
	}

	info, err := store.Info(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read collection: %w", err)
	}

	if infoJSON {
		if info.Filenames == nil {
			info.Filenames = []string{}
		}
		return printJSON(cmd, info)
	}

	cmd.Println("Collection")
	cmd.Printf("  Chunks: %d\n", info.TotalChunks)
	cmd.Printf("  Documents: %d\n", info.TotalDocuments)
	for _, name := range info.Filenames {
		cmd.Printf("    %s\n", name)
	}
	return nil
}

// chunkView is the JSON shape of a listed chunk.
type chunkView struct {
	ChunkID  int                  `json:"chunk_id"`
	Key      string               `json:"key"`
	Content  string               `json:"content"`
	Metadata domain.ChunkMetadata `json:"metadata"`
}

func runChunks(cmd *cobra.Command, args []string) error {
	store, err := requireVectorStore(cmd.Context())
	if err != nil {
		return hint(err)
	}

	chunks, err := store.Chunks(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks stored for %s", domain.ErrNotFound, args[0])
	}

	if chunksJSON {
		views := make([]chunkView, len(chunks))
		for i, c := range chunks {
			views[i] = chunkView{ChunkID: c.ChunkID, Key: c.Key, Content: c.Content, Metadata: c.Metadata}
		}
		return printJSON(cmd, views)
	}

	cmd.Printf("%s: %d chunks (%s, %d pages)\n", args[0], len(chunks),
		chunks[0].Metadata.Method, chunks[0].Metadata.Pages)
	for _, c := range chunks {
		cmd.Printf("  #%d %s\n", c.ChunkID, snippet(c.Content, 80))
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	store, err := requireVectorStore(cmd.Context())
	if err != nil {
		return hint(err)
	}

	var chunkID *int
	if cmd.Flags().Changed("chunk") {
		if deleteChunk < 0 {
			return fmt.Errorf("%w: chunk id must not be negative", domain.ErrInvalidInput)
		}
		id := deleteChunk
		chunkID = &id
	}

	if err := store.Delete(cmd.Context(), args[0], chunkID); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	if chunkID != nil {
		cmd.Printf("Deleted chunk %d of %s\n", *chunkID, args[0])
	} else {
		cmd.Printf("Deleted %s\n", args[0])
	}
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	chunkID, err := strconv.Atoi(args[1])
	if err != nil || chunkID < 0 {
		return fmt.Errorf("%w: invalid chunk id %q", domain.ErrInvalidInput, args[1])
	}

	store, err := requireVectorStore(cmd.Context())
	if err != nil {
		return hint(err)
	}

	if err := store.Update(cmd.Context(), args[0], chunkID, args[2], nil); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	cmd.Printf("Updated chunk %d of %s\n", chunkID, args[0])
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	if !clearYes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("refusing to clear without confirmation; pass --yes")
		}
		cmd.Print("Delete every stored chunk? [y/N]: ")
		answer := strings.ToLower(readLine(bufio.NewReader(os.Stdin)))
		if answer != "y" && answer != "yes" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	store, err := requireVectorStore(cmd.Context())
	if err != nil {
		return hint(err)
	}

	n, err := store.Clear(cmd.Context())
	if err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	cmd.Printf("Deleted %d chunks\n", n)
	return nil
}
