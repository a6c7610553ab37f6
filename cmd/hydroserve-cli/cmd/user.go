package cmd

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long:  `List, create, and manage user accounts directly in the database.`,
}

func init() {
	rootCmd.AddCommand(userCmd)
}

// ==================== List ====================

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}

		var users []models.User
		if err := database.Order("created_at").Find(&users).Error; err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tACCOUNT\tCREATED")
		for _, user := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				user.ID,
				user.Username,
				user.Email,
				user.AccountType,
				user.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		w.Flush()

		return nil
	},
}

func init() {
	userCmd.AddCommand(userListCmd)
}

// ==================== Create admin ====================

var (
	createAdminUsername string
	createAdminEmail    string
)

var userCreateAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	Long:  `Create an admin account, prompting for the password on the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}

		password, err := promptPassword()
		if err != nil {
			return err
		}

		email := createAdminEmail
		if email == "" {
			email = fmt.Sprintf("%s@hydroserve.local", createAdminUsername)
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		user := models.User{
			Username:     createAdminUsername,
			Email:        email,
			PasswordHash: hash,
			AccountType:  models.AccountAdmin,
		}
		if err := database.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		fmt.Printf("Admin user created!\n")
		fmt.Printf("  ID:       %s\n", user.ID)
		fmt.Printf("  Username: %s\n", user.Username)
		fmt.Printf("  Email:    %s\n", user.Email)

		return nil
	},
}

func init() {
	userCmd.AddCommand(userCreateAdminCmd)

	userCreateAdminCmd.Flags().StringVar(&createAdminUsername, "username", "", "Username (required)")
	userCreateAdminCmd.Flags().StringVar(&createAdminEmail, "email", "", "Email (defaults to <username>@hydroserve.local)")

	userCreateAdminCmd.MarkFlagRequired("username")
}

// ==================== Create ====================

var (
	createUserUsername    string
	createUserEmail       string
	createUserAccountType string
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountType := models.AccountType(createUserAccountType)
		switch accountType {
		case models.AccountAdmin, models.AccountStaff, models.AccountStandard, models.AccountLimited:
		default:
			return fmt.Errorf("invalid account type %q (valid: admin, staff, standard, limited)", createUserAccountType)
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}

		password, err := promptPassword()
		if err != nil {
			return err
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		user := models.User{
			Username:     createUserUsername,
			Email:        createUserEmail,
			PasswordHash: hash,
			AccountType:  accountType,
		}
		if err := database.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Printf("User created!\n")
		fmt.Printf("  ID:       %s\n", user.ID)
		fmt.Printf("  Username: %s\n", user.Username)
		fmt.Printf("  Account:  %s\n", user.AccountType)

		return nil
	},
}

func init() {
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().StringVar(&createUserUsername, "username", "", "Username (required)")
	userCreateCmd.Flags().StringVar(&createUserEmail, "email", "", "Email (required)")
	userCreateCmd.Flags().StringVar(&createUserAccountType, "account-type", "standard", "Account type: admin, staff, standard, limited")

	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("email")
}

// ==================== Set account type ====================

var userSetAccountTypeCmd = &cobra.Command{
	Use:   "set-account-type [id] [type]",
	Short: "Change a user's account type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user ID: %w", err)
		}

		accountType := models.AccountType(args[1])
		switch accountType {
		case models.AccountAdmin, models.AccountStaff, models.AccountStandard, models.AccountLimited:
		default:
			return fmt.Errorf("invalid account type %q (valid: admin, staff, standard, limited)", args[1])
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}

		result := database.Model(&models.User{}).
			Where("id = ?", userID).
			Update("account_type", accountType)
		if result.Error != nil {
			return fmt.Errorf("failed to update user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("user %s not found", userID)
		}

		fmt.Printf("Account type for %s set to %s\n", userID, accountType)
		return nil
	},
}

func init() {
	userCmd.AddCommand(userSetAccountTypeCmd)
}

// ==================== Delete ====================

var userDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user ID: %w", err)
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}

		// Owned workspaces would be orphaned; refuse rather than cascade
		// from an offline tool.
		var owned int64
		if err := database.Model(&models.Workspace{}).Where("owner_id = ?", userID).Count(&owned).Error; err != nil {
			return fmt.Errorf("failed to check workspaces: %w", err)
		}
		if owned > 0 {
			return fmt.Errorf("user owns %d workspace(s); delete or transfer them first", owned)
		}

		result := database.Where("id = ?", userID).Delete(&models.User{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("user %s not found", userID)
		}

		fmt.Printf("User %s deleted\n", userID)
		return nil
	},
}

func init() {
	userCmd.AddCommand(userDeleteCmd)
}

// ==================== Helpers ====================

// promptPassword reads a password twice from the terminal without echo.
func promptPassword() (string, error) {
	fmt.Print("Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Confirm password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	password := strings.TrimSpace(string(first))
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	if password != strings.TrimSpace(string(second)) {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}
