package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/repository"
	"github.com/stemsi/prepgen-backend/internal/service"
	"github.com/stemsi/prepgen-backend/internal/validator"
	"golang.org/x/term"
)

var createAdminRole string

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a staff account interactively",
	Args:  cobra.NoArgs,
	RunE:  runCreateAdmin,
}

var assignRoleCmd = &cobra.Command{
	Use:   "assign-role EMAIL ROLE",
	Short: "Move a staff account to another role (super_admin, content_author, reviewer)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !model.IsRoleName(args[1]) {
			return fmt.Errorf("unknown role %q, want one of %s", args[1], strings.Join(model.RoleNames, ", "))
		}
		ctx, cancel := commandContext(cmd, 30*time.Second)
		defer cancel()

		pool, err := connectPostgres(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		admins := newAdminService(repository.NewAdminRepository(pool), repository.NewRoleRepository(pool))
		if err := admins.AssignRole(ctx, strings.ToLower(args[0]), args[1]); err != nil {
			return err
		}
		fmt.Printf("%s now has role %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&createAdminRole, "role", model.RoleSuperAdmin, "Role name for the new account")
}

func newAdminService(adminRepo *repository.AdminRepository, roleRepo *repository.RoleRepository) *service.AdminService {
	// Only password hashing is used here; no Redis session is needed.
	return service.NewAdminService(adminRepo, roleRepo, service.NewAuthService(env.cfg, nil))
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) string {
		fmt.Print(label)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	fmt.Println("=== Create New Admin User ===")
	name := prompt("Enter Name: ")
	email := prompt("Enter Email: ")

	fmt.Print("Enter Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	ctx, cancel := commandContext(cmd, 30*time.Second)
	defer cancel()

	pool, err := connectPostgres(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	roleRepo := repository.NewRoleRepository(pool)
	role, err := roleRepo.GetByName(ctx, createAdminRole)
	if err != nil {
		return fmt.Errorf("role %q: %w", createAdminRole, err)
	}

	req := model.CreateAdminRequest{Email: email, Name: name, Password: string(raw), RoleID: role.ID}
	if err := validator.New().Struct(req); err != nil {
		for field, msg := range validator.TranslateErrors(err) {
			fmt.Printf("  %s: %s\n", field, msg)
		}
		return errors.New("invalid input")
	}

	admin, err := newAdminService(repository.NewAdminRepository(pool), roleRepo).Create(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("\nSuccess! Admin '%s' (%s) created with ID %d and role %s\n", admin.Name, admin.Email, admin.ID, role.Name)
	return nil
}
