package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// logsCmd represents the logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View Fakturo logs",
	Long: `Display Fakturo operation logs including sync activities,
errors, and system events.`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().Int("tail", 20, "Number of lines to display")
	logsCmd.Flags().String("level", "", "Filter by log level (debug, info, warn, error)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	tail, _ := cmd.Flags().GetInt("tail")
	level, _ := cmd.Flags().GetString("level")

	logFile := viper.GetString("logging.file")

	fmt.Printf("📜 Fakturo Logs\n")
	fmt.Printf("═══════════════════════════════════════\n")
	fmt.Printf("📁 Log file: %s\n", logFile)
	if level != "" {
		fmt.Printf("🔍 Filter: %s level\n", level)
	}
	fmt.Printf("\n")

	file, err := os.Open(logFile)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("No log entries yet\n")
			return nil
		}
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	// Keep only the last N matching lines
	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if level != "" && !matchesLevel(line, level) {
			continue
		}
		lines = append(lines, line)
		if len(lines) > tail {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}

	if len(lines) == 0 {
		fmt.Printf("No log entries yet\n")
		return nil
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func matchesLevel(line, level string) bool {
	upper := strings.ToUpper(level)
	return strings.Contains(line, "\t"+upper+"\t") ||
		strings.Contains(line, `"level":"`+strings.ToLower(level)+`"`)
}
