package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fbcleanup/pkg/auth"
	"fbcleanup/pkg/browser"
	"fbcleanup/pkg/logger"
	"fbcleanup/pkg/ui"
)

var (
	// Auth command flags
	accountName string
	encrypt     bool
	removeAll   bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Facebook session cookies",
	Long: `Manage the Facebook session used for cleanup.

A session is the cookie export of a logged-in browser. It is stored in:
  - System keychain (when available)
  - Encrypted file in the config directory
  - FACEBOOK_COOKIES_JSON environment variable (read only)

A cookie export file at facebook.cookies_path is used when nothing is stored.
Never share your cookie export!`,
}

// importCmd represents the auth import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Validate a cookie export and store it",
	Long: `Validate a cookie export and store it securely.

The file must be a JSON object with a "cookies" list that includes the
c_user and xs cookies. Run 'fbcleanup auth guide' for export steps.

The account name defaults to the c_user id in the export. With --encrypt
the export goes to the encrypted file only, under a passphrase you type;
set FBCLEANUP_PASSPHRASE to the same value when running cleanup.`,
	Example: `  # Import and store in the keychain
  fbcleanup auth import cookies.json --account jane.doe

  # Store under your own passphrase
  fbcleanup auth import cookies.json --encrypt`,
	Args: cobra.ExactArgs(1),
	Run:  runImport,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Long:  `List stored sessions with cookie values masked.`,
	Run:   runList,
}

// removeCmd represents the auth remove command
var removeCmd = &cobra.Command{
	Use:   "remove [account]",
	Short: "Remove a stored session",
	Long: `Remove a stored session.

If no account is given, you will be shown a list of stored sessions to
choose from. Use --all to remove every stored session.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRemove,
}

// checkCmd represents the auth check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the session still logs in",
	Long: `Open mbasic.facebook.com with the resolved session and report whether
it is logged in, expired or stopped at a two-factor checkpoint.`,
	Args: cobra.NoArgs,
	Run:  runCheck,
}

// guideCmd represents the auth guide command
var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Show how to export your cookies",
	Run: func(cmd *cobra.Command, args []string) {
		path := "data/cookies.json"
		if cfg, err := loadConfig(nil); err == nil {
			path = cfg.Facebook.CookiesPath
		}
		auth.ShowCookieExportGuide(cmd.OutOrStdout(), path)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(importCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(removeCmd)
	authCmd.AddCommand(checkCmd)
	authCmd.AddCommand(guideCmd)

	importCmd.Flags().StringVarP(&accountName, "account", "a", "", "account name (default: the c_user id)")
	importCmd.Flags().BoolVar(&encrypt, "encrypt", false, "store in the encrypted file under a passphrase you enter")
	checkCmd.Flags().StringVarP(&accountName, "account", "a", "", "stored account to check")
	removeCmd.Flags().BoolVar(&removeAll, "all", false, "remove every stored session")
}

func runImport(cmd *cobra.Command, args []string) {
	bundle, err := auth.LoadCookieBundle(args[0])
	if err != nil {
		ui.PrintError("Invalid cookie export", err.Error())
		os.Exit(1)
	}
	if err := bundle.Require(); err != nil {
		ui.PrintError("Cookie export is incomplete", err.Error())
		fmt.Println("\nRun 'fbcleanup auth guide' for export steps.")
		os.Exit(1)
	}

	name := strings.TrimSpace(accountName)
	if name == "" {
		name = bundle.UserID()
	}
	account := &auth.Account{Username: name, Cookies: bundle}

	var manager *auth.Manager
	if encrypt {
		manager, err = encryptedManager()
	} else {
		manager, err = auth.NewManager()
	}
	if err != nil {
		ui.PrintError("Failed to initialize credential store", err.Error())
		os.Exit(1)
	}

	if existing, _ := manager.Retrieve(name); existing != nil && existing.Cookies != nil {
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("Account '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store session", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Session stored: %s (%d cookies)", name, len(bundle.Cookies)))
	if encrypt {
		fmt.Println("\nSet FBCLEANUP_PASSPHRASE to your passphrase before running cleanup.")
	}
	fmt.Println("\nVerify it with:")
	fmt.Println("  fbcleanup auth check")
}

// encryptedManager prompts for a passphrase and returns a manager over the
// encrypted file alone
func encryptedManager() (*auth.Manager, error) {
	path, err := auth.DefaultStorePath()
	if err != nil {
		return nil, err
	}

	fmt.Print("Passphrase: ")
	pass, err := readPassword()
	if err != nil {
		return nil, err
	}
	fmt.Print("Repeat passphrase: ")
	again, err := readPassword()
	if err != nil {
		return nil, err
	}
	if pass != again {
		return nil, errors.New("passphrases do not match")
	}

	store, err := auth.NewEncryptedFileStoreWithPassphrase(path, pass)
	if err != nil {
		return nil, err
	}
	return auth.NewManagerWithStores(store), nil
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential store", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list sessions", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored sessions", "Use 'fbcleanup auth import <file>' to add one")
		return
	}

	ui.PrintHighlight("Stored Sessions")
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Account: %s\n", i+1, sanitized.Username)
		if sanitized.Cookies != nil {
			for _, c := range sanitized.Cookies.Cookies {
				if c.Name == "c_user" || c.Name == "xs" {
					fmt.Printf("   %s: %s\n", c.Name, c.Value)
				}
			}
			fmt.Printf("   Cookies: %d\n", len(sanitized.Cookies.Cookies))
		}
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}

func runRemove(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential store", err.Error())
		os.Exit(1)
	}
	reader := bufio.NewReader(os.Stdin)

	if removeAll {
		fmt.Print("Remove ALL stored sessions? This cannot be undone! (yes/N): ")
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			return
		}
		if err := manager.DeleteAll(); err != nil {
			ui.PrintError("Failed to remove sessions", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("All sessions removed")
		return
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			ui.PrintError("No stored sessions found")
			return
		}

		fmt.Println("Select session to remove:")
		for i, account := range accounts {
			fmt.Printf("  %d. %s\n", i+1, account.Username)
		}
		fmt.Printf("  0. Cancel\n\n")
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)
		if choice == 0 {
			return
		}
		if choice < 0 || choice > len(accounts) {
			ui.PrintError("Invalid choice")
			os.Exit(1)
		}
		name = accounts[choice-1].Username
	}

	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove session", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Session removed: " + name)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	initLogger(cfg)
	log := logger.GetLogger()

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("credential store unavailable, using the cookie file only")
	}
	name := accountName
	if name == "" {
		name = cfg.Facebook.Username
	}
	bundle, source, err := manager.ResolveBundle(name, cfg.Facebook.CookiesPath)
	if err != nil {
		ui.PrintError("No usable Facebook session", err.Error())
		auth.ShowQuickExportGuide(os.Stdout)
		os.Exit(1)
	}
	ui.PrintInfo("Session source", string(source))
	ui.PrintInfo("User id", bundle.UserID())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	page, err := browser.Launch(ctx, browser.Options{
		Browser:           cfg.Browser,
		NavigationTimeout: cfg.Traversal.NavigationTimeout,
		Cookies:           bundle.BrowserCookies(),
		Logger:            log,
	})
	if err != nil {
		ui.PrintError("Failed to launch browser", err.Error())
		os.Exit(1)
	}
	ok, msg := auth.NewSessionValidator(log).Validate(ctx, page)
	page.Close()

	if !ok {
		ui.PrintError("Session check failed", msg)
		auth.ShowQuickExportGuide(os.Stdout)
		os.Exit(1)
	}
	ui.PrintSuccess(msg)
}

// readPassword reads a passphrase from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
