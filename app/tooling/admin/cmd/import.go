package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// maxLine is the largest encoded block accepted on a single line.
const maxLine = 4 << 20

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a file of encoded blocks, one per line, into the block storage",
	Args:  cobra.ExactArgs(1),
	RunE:  importRun,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func importRun(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var data [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(nil, maxLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		data = append(data, bytes.Clone(line))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	st, err := openState()
	if err != nil {
		return err
	}
	defer st.Shutdown()

	var rejected int
	for i, err := range st.ImportBlocks(context.Background(), data) {
		if err != nil {
			rejected++
			fmt.Fprintf(cmd.OutOrStdout(), "line %d: rejected: %s\n", i+1, err)
		}
	}

	latest, _ := st.RetrieveLatestBlock()
	fmt.Fprintf(cmd.OutOrStdout(), "blocks[%d]: rejected[%d]: latest[%d]: %s\n", len(data), rejected, latest.Number(), latest.ID())

	return nil
}
