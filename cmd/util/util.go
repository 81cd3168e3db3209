package util

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veridian-dash/veridian/api/client"
	"github.com/veridian-dash/veridian/api/common"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (VERIDIAN_<FLAG>)
	EnvPrefix = "veridian"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	errColor   = color.New(color.FgRed, color.Bold)
	labelColor = color.New(color.FgCyan)
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and binds VERIDIAN_* environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// SetupClientFlags adds the API connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the veridian server (e.g. localhost:8080 or https://dash.example.com)"))

	key = "timeout"
	cmd.PersistentFlags().Duration(key, 10*time.Second, WrapString("The timeout of a single request"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to try a read request"))

	key = "json"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the raw JSON data instead of a table"))
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() common.ClientConfig {
	return common.ClientConfig{
		Endpoint:   viper.GetString("endpoint"),
		Timeout:    viper.GetDuration("timeout"),
		RetryCount: viper.GetInt("retries"),
	}
}

// NewClient binds the flags of cmd and connects a client with them. It is meant to be
// used as PersistentPreRunE of a command group.
func NewClient(cmd *cobra.Command) (*client.Client, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	return client.New(GetClientConfig())
}

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// JSONOutput reports whether --json was given
func JSONOutput() bool {
	return viper.GetBool("json")
}

// PrintJSON prints v indented on stdout
func PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success prints a green status line
func Success(format string, args ...any) {
	_, _ = okColor.Println(fmt.Sprintf(format, args...))
}

// Failure prints a red status line on stderr
func Failure(format string, args ...any) {
	_, _ = errColor.Fprintln(os.Stderr, fmt.Sprintf(format, args...))
}

// Field prints "label: value" with a colored label
func Field(label string, value any) {
	fmt.Printf("%s %v\n", labelColor.Sprintf("%-14s", label+":"), value)
}

// Next prints the cursor of the next page, if any
func Next(next *string) {
	if next != nil {
		Field("next cursor", *next)
	}
}
