package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/danielbelay23/data-pipelines/pkg/auth"
	"github.com/danielbelay23/data-pipelines/pkg/config"
	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/twitter"
	"github.com/danielbelay23/data-pipelines/pkg/ui"
)

var verifyLogin bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored session cookies",
	Long: `Manage the auth_token and ct0 cookies used to reach the remote service.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (TWPIPELINE_AUTH_TOKEN, TWPIPELINE_CSRF_TOKEN)

Never share your cookies or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store session cookies securely",
	Example: `  # Interactive login
  twpipeline auth login

  # Store and check against the remote service
  twpipeline auth login myhandle --verify`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored cookies",
	Args:  cobra.ExactArgs(1),
	Run:   runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().BoolVar(&verifyLogin, "verify", false, "verify the cookies against the remote service before storing")
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowCookieExtractionGuide(ui.Out)

	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		fmt.Fprint(ui.Out, "Screen name: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read username", err.Error())
			os.Exit(1)
		}
		name = input
	}
	name = twitter.SanitizeScreenName(name)
	if name == "" {
		ui.PrintError("Username is required")
		os.Exit(1)
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Fprintf(ui.Out, "Account '%s' already exists. Update cookies? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Fprintln(ui.Out, "\nEnter your cookie values (input is hidden):")
	fmt.Fprint(ui.Out, "auth_token: ")
	authToken, err := readSecret(reader)
	if err != nil {
		ui.PrintError("Failed to read auth_token", err.Error())
		os.Exit(1)
	}
	fmt.Fprint(ui.Out, "ct0: ")
	csrfToken, err := readSecret(reader)
	if err != nil {
		ui.PrintError("Failed to read ct0", err.Error())
		os.Exit(1)
	}
	fmt.Fprint(ui.Out, "User agent (Enter for default): ")
	userAgent, _ := reader.ReadString('\n')

	account := &auth.Account{
		Username:  name,
		AuthToken: authToken,
		CSRFToken: csrfToken,
		UserAgent: strings.TrimSpace(userAgent),
	}

	if verifyLogin {
		if err := verifyAccount(account); err != nil {
			ui.PrintError("Cookies rejected", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Cookies verified for @" + name)
	}

	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", name))
}

// verifyAccount checks the cookies with one verify_credentials call
func verifyAccount(account *auth.Account) error {
	cfg := config.DefaultConfig()
	if loaded, err := config.Load(configFile, nil); err == nil {
		cfg = loaded
	}

	client := twitter.NewClient(&cfg.Twitter, nil, logger.NewNopLogger())
	ua := account.UserAgent
	if ua == "" {
		ua = cfg.Twitter.UserAgent
	}
	client.SetCredentials(account.AuthToken, account.CSRFToken, ua)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	user, err := client.VerifyCredentials(ctx)
	if err != nil {
		return err
	}
	if !strings.EqualFold(twitter.SanitizeScreenName(user.ScreenName), account.Username) {
		return fmt.Errorf("cookies belong to @%s, not @%s", user.ScreenName, account.Username)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	name := twitter.SanitizeScreenName(args[0])
	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + name)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'twpipeline auth login' to add one")
		return
	}

	ui.PrintHighlight("Stored Accounts")
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Fprintf(ui.Out, "%d. %s\n", i+1, sanitized.Username)
		fmt.Fprintf(ui.Out, "   auth_token: %s\n", sanitized.AuthToken)
		fmt.Fprintf(ui.Out, "   ct0:        %s\n", sanitized.CSRFToken)
		fmt.Fprintf(ui.Out, "   modified:   %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
}

// readSecret reads a value without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(ui.Out)
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
