package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chriserin/pickle/internal/config"
	"github.com/chriserin/pickle/internal/db"
)

const defaultConfig = `# feature: features/example.feature
# junit_output: reports/junit.xml
# json_output: reports/feature.json
history_db: .pickle/history.db
debug_port: 3001
timeout: 60s
warn_duplicates: false
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pickle in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunInit(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func RunInit(w io.Writer) error {
	// pickle.yaml
	if _, err := os.Stat(config.FileName); err == nil {
		fmt.Fprintln(w, config.FileName+" already exists")
	} else {
		if err := os.WriteFile(config.FileName, []byte(defaultConfig), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", config.FileName, err)
		}
		fmt.Fprintln(w, config.FileName+" created")
	}

	// history database
	dir := filepath.Dir(config.DefaultHistoryDB)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", dir, err)
	}
	_, err := os.Stat(config.DefaultHistoryDB)
	dbExists := err == nil
	sqlDB, err := db.Open(config.DefaultHistoryDB)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	sqlDB.Close()
	if dbExists {
		fmt.Fprintln(w, config.DefaultHistoryDB+" already exists")
	} else {
		fmt.Fprintln(w, config.DefaultHistoryDB+" created")
	}

	// gitignore
	msgs, err := ensureGitignore(dir + "/")
	if err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	for _, msg := range msgs {
		fmt.Fprintln(w, msg)
	}

	return nil
}

func ensureGitignore(entry string) ([]string, error) {
	data, err := os.ReadFile(".gitignore")
	if os.IsNotExist(err) {
		if err := os.WriteFile(".gitignore", []byte(entry+"\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{".gitignore created", entry + " added to .gitignore"}, nil
	}
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		if strings.TrimSpace(line) == entry {
			return []string{entry + " already in .gitignore"}, nil
		}
	}

	content := string(data)
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += entry + "\n"

	if err := os.WriteFile(".gitignore", []byte(content), 0o644); err != nil {
		return nil, err
	}
	return []string{entry + " added to .gitignore"}, nil
}
