package main

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/calbers/twinchat/internal/config"
	"github.com/calbers/twinchat/internal/hosting"
)

const uploadConcurrency = 4

var newHostingClient = hosting.NewClient

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy twinchat to a Spaces-style hosting platform",
	Long: `Deploy uploads the application files to a hosting platform space and
configures its runtime secrets. Missing values are prompted for
interactively.

Examples:
  twinchat deploy --space digital-twin --dir .
  twinchat deploy --space digital-twin --org acme --private=false
  twinchat deploy list
  twinchat deploy delete robin/digital-twin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeploy(cmd)
	},
}

var deployListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your spaces on the hosting platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeployList(cmd.Context())
	},
}

var deployDeleteCmd = &cobra.Command{
	Use:   "delete <owner/space>",
	Short: "Delete a space and its persistent storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeployDelete(cmd.Context(), args[0])
	},
}

func init() {
	deployCmd.Flags().String("token", "", "platform access token (default: $HF_TOKEN or prompt)")
	deployCmd.Flags().String("space", "", "space name (prompted if empty)")
	deployCmd.Flags().String("org", "", "organization to own the space (default: your account)")
	deployCmd.Flags().String("dir", ".", "directory with the files to upload")
	deployCmd.Flags().String("sdk", "docker", "space runtime SDK")
	deployCmd.Flags().Bool("private", true, "create the space as private")

	deployCmd.AddCommand(deployListCmd)
	deployCmd.AddCommand(deployDeleteCmd)
}

func platformToken(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if tok := os.Getenv("HF_TOKEN"); tok != "" {
		return tok, nil
	}
	tok, err := promptString("Platform access token", "")
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", fmt.Errorf("a platform access token is required")
	}
	return tok, nil
}

// stdinReader is shared across prompts so buffered input is not lost
// between consecutive promptString calls.
var stdinReader *bufio.Reader

func promptString(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(os.Stderr, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(os.Stderr, "%s: ", label)
	}
	if stdinReader == nil {
		stdinReader = bufio.NewReader(os.Stdin)
	}
	line, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

func runDeploy(cmd *cobra.Command) error {
	ctx := cmd.Context()

	tokenFlag, _ := cmd.Flags().GetString("token")
	spaceName, _ := cmd.Flags().GetString("space")
	org, _ := cmd.Flags().GetString("org")
	dir, _ := cmd.Flags().GetString("dir")
	sdk, _ := cmd.Flags().GetString("sdk")
	private, _ := cmd.Flags().GetBool("private")

	// The deployed app needs the same runtime configuration as a local run,
	// so load it up front and fail before touching the platform.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	token, err := platformToken(tokenFlag)
	if err != nil {
		return err
	}

	if spaceName == "" {
		spaceName, err = promptString("Space name", "digital-twin")
		if err != nil {
			return err
		}
	}

	files, err := collectDeployFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files to upload in %s", dir)
	}
	profileUploads, err := promptProfileUploads(dir, cfg.Profile.Dir)
	if err != nil {
		return err
	}

	client := newHostingClient(token)

	printStep("Authenticating...")
	acct, err := client.Whoami(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	printSuccess("Authenticated as %s", acct.Name)

	owner := acct.Name
	if org != "" {
		owner = org
	}
	spaceID := owner + "/" + spaceName

	printStep("Creating space %s...", spaceID)
	_, err = client.CreateSpace(ctx, hosting.CreateSpaceRequest{
		Name:         spaceName,
		Organization: org,
		SDK:          sdk,
		Private:      private,
	})
	switch {
	case err == nil:
		printSuccess("Space created")
	case hosting.IsConflict(err):
		printWarning("Space already exists, reusing it")
	default:
		return err
	}

	printStep("Uploading %d files...", len(files)+len(profileUploads))
	g, uploadCtx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for _, relPath := range files {
		g.Go(func() error {
			content, err := os.ReadFile(filepath.Join(dir, relPath))
			if err != nil {
				return fmt.Errorf("reading %s: %w", relPath, err)
			}
			err = client.UploadFiles(uploadCtx, spaceID, "add "+relPath, []hosting.FileUpload{
				{Path: filepath.ToSlash(relPath), Content: content},
			})
			if err != nil {
				return err
			}
			printStep("  uploaded %s", relPath)
			return nil
		})
	}
	for _, up := range profileUploads {
		g.Go(func() error {
			err := client.UploadFiles(uploadCtx, spaceID, "add "+up.Path, []hosting.FileUpload{up})
			if err != nil {
				return err
			}
			printStep("  uploaded %s", up.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	printSuccess("Files uploaded")

	printStep("Setting secrets...")
	secrets := map[string]string{
		"OPENAI_API_KEY": cfg.OpenAI.APIKey,
	}
	if cfg.Pushover.Enabled() {
		secrets["PUSHOVER_USER"] = cfg.Pushover.User
		secrets["PUSHOVER_TOKEN"] = cfg.Pushover.Token
	}
	if cfg.Server.AdminToken != "" {
		secrets["TWINCHAT_ADMIN_TOKEN"] = cfg.Server.AdminToken
	}
	for key, value := range secrets {
		if err := client.SetSecret(ctx, spaceID, key, value); err != nil {
			return err
		}
	}

	variables := map[string]string{
		"OPENAI_MODEL": cfg.OpenAI.Model,
	}
	if cfg.Profile.LookingForRole != nil {
		variables["LOOKING_FOR_ROLE"] = strconv.FormatBool(*cfg.Profile.LookingForRole)
	}
	for key, value := range variables {
		if err := client.SetVariable(ctx, spaceID, key, value); err != nil {
			return err
		}
	}
	printSuccess("Secrets configured")

	fmt.Println(client.SpaceURL(spaceID))
	return nil
}

// promptProfileUploads makes sure the upload set carries the profile
// summary the deployed app requires at startup. When dir already holds a
// non-empty summary file nothing is collected; otherwise the profile
// fields are prompted for and returned as in-memory uploads.
func promptProfileUploads(dir, profileDir string) ([]hosting.FileUpload, error) {
	data, err := os.ReadFile(filepath.Join(dir, profileDir, "summary.txt"))
	if err == nil && strings.TrimSpace(string(data)) != "" {
		return nil, nil
	}

	printWarning("No profile summary found under %s", filepath.Join(dir, profileDir))
	summary, err := promptString("Profile summary", "")
	if err != nil {
		return nil, err
	}
	if summary == "" {
		return nil, fmt.Errorf("a profile summary is required: the deployed app will not start without %s", filepath.Join(profileDir, "summary.txt"))
	}
	name, err := promptString("Display name", "")
	if err != nil {
		return nil, err
	}
	linkedin, err := promptString("LinkedIn URL", "")
	if err != nil {
		return nil, err
	}

	prefix := filepath.ToSlash(profileDir)
	uploads := []hosting.FileUpload{
		{Path: path.Join(prefix, "summary.txt"), Content: []byte(summary + "\n")},
	}
	if name != "" {
		uploads = append(uploads, hosting.FileUpload{Path: path.Join(prefix, "name.txt"), Content: []byte(name + "\n")})
	}
	if linkedin != "" {
		uploads = append(uploads, hosting.FileUpload{Path: path.Join(prefix, "linkedin_url.txt"), Content: []byte(linkedin + "\n")})
	}
	return uploads, nil
}

// collectDeployFiles walks dir and returns relative paths of the files to
// upload. Hidden entries and local runtime artifacts stay out of the commit.
func collectDeployFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") ||
			strings.HasSuffix(name, ".pid") ||
			strings.HasSuffix(name, ".db") ||
			strings.HasSuffix(name, ".db-wal") ||
			strings.HasSuffix(name, ".db-shm") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return files, nil
}

func runDeployList(ctx context.Context) error {
	token, err := platformToken("")
	if err != nil {
		return err
	}
	client := newHostingClient(token)

	acct, err := client.Whoami(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	printSuccess("Authenticated as %s", acct.Name)

	// Collect spaces across the account and its orgs, deduplicated.
	seen := map[string]bool{}
	var all []string
	for _, author := range append([]string{acct.Name}, acct.Orgs...) {
		spaces, err := client.ListSpaces(ctx, author)
		if err != nil {
			printWarning("could not list spaces for %s: %v", author, err)
			continue
		}
		for _, s := range spaces {
			if !seen[s.ID] {
				seen[s.ID] = true
				all = append(all, s.ID)
			}
		}
	}

	if len(all) == 0 {
		fmt.Println("No spaces found.")
		return nil
	}
	fmt.Println("Your spaces:")
	for _, id := range all {
		fmt.Println(" -", id)
	}
	return nil
}

func runDeployDelete(ctx context.Context, spaceID string) error {
	if !strings.Contains(spaceID, "/") {
		return fmt.Errorf("space must be given as owner/name, got %q", spaceID)
	}

	token, err := platformToken("")
	if err != nil {
		return err
	}
	client := newHostingClient(token)

	printStep("Wiping persistent storage of %s...", spaceID)
	if err := client.DeleteSpaceStorage(ctx, spaceID); err != nil {
		if hosting.IsNotFound(err) {
			printWarning("no persistent storage to wipe")
		} else {
			printWarning("skipped storage wipe: %v", err)
		}
	} else {
		printSuccess("Storage wiped")
	}

	printStep("Deleting space repository...")
	if err := client.DeleteSpace(ctx, spaceID); err != nil {
		return fmt.Errorf("delete failed (maybe already gone or permission issue): %w", err)
	}
	printSuccess("Space deleted")

	// Verify it no longer shows up in the owner's listing.
	owner := strings.SplitN(spaceID, "/", 2)[0]
	spaces, err := client.ListSpaces(ctx, owner)
	if err != nil {
		printWarning("could not verify deletion: %v", err)
		return nil
	}
	for _, s := range spaces {
		if s.ID == spaceID {
			return fmt.Errorf("space %s still present in listing", spaceID)
		}
	}
	printSuccess("Verified removed from listing")
	return nil
}
