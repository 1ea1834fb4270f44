package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cumulus/internal/flags"
	"cumulus/internal/service"
	"cumulus/pkg/common"
	"cumulus/pkg/storage"
)

type storageFlags struct {
	provider string
	bucket   string
	app      string
	force    bool
	watch    bool

	maxSize    int64
	maxResults int
	pageToken  string

	contentType        string
	cacheControl       string
	contentDisposition string
	contentEncoding    string
	contentLanguage    string
}

func (f *storageFlags) target() service.Target {
	return service.Target{Provider: f.provider, Bucket: f.bucket, App: f.app}
}

func newStorageCmd(app *appContainer) *cobra.Command {
	cmdFlags := storageFlags{}

	storageCmd := &cobra.Command{
		Use:   "storage",
		Short: "Work with objects in cloud storage",
		Long: `The storage command uploads, downloads, lists and inspects objects on a
configured provider, and manages their metadata and retry windows.`,
	}

	providerNames := make([]string, 0, len(common.All()))
	for _, p := range common.All() {
		providerNames = append(providerNames, string(p))
	}
	storageCmd.PersistentFlags().StringVarP(&cmdFlags.provider, flags.Provider, flags.ProviderShort, "",
		fmt.Sprintf("The provider to operate on (%s). Defaults to the configured default_provider.", strings.Join(providerNames, ", ")))
	storageCmd.PersistentFlags().StringVarP(&cmdFlags.bucket, flags.Bucket, flags.BucketShort, "", "Override the provider's configured bucket for this invocation.")
	storageCmd.PersistentFlags().StringVar(&cmdFlags.app, flags.App, "", "Override the configured application identifier for this invocation.")

	uploadCmd := &cobra.Command{
		Use:   "upload [local-file...] [remote-path]",
		Short: "Upload one or more files",
		Long: `Uploads local files to the given remote path. With a single file the path
names the object directly unless it ends with '/'; with several files the
path is treated as a directory prefix and each object keeps its file name.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			localFiles := args[:len(args)-1]
			dest := args[len(args)-1]
			md := metadataFromFlags(cmd, &cmdFlags)

			if len(localFiles) == 1 && !strings.HasSuffix(dest, "/") {
				return runSingleUpload(cmd, app, &cmdFlags, localFiles[0], dest, md)
			}

			specs := make([]service.TransferSpec, 0, len(localFiles))
			for _, localFile := range localFiles {
				specs = append(specs, service.TransferSpec{
					LocalFile:  localFile,
					RemotePath: remoteJoin(dest, filepath.Base(localFile)),
				})
			}

			snapshots, err := app.StorageService.UploadMany(cmd.Context(), cmdFlags.target(), specs, md)
			if err != nil {
				return err
			}

			for i, snapshot := range snapshots {
				fmt.Printf("Uploaded %s to %s\n", specs[i].LocalFile, specs[i].RemotePath)
				fmt.Printf("  Download URL: %s\n", snapshot.DownloadURL)
			}
			return nil
		},
	}
	registerMetadataFlags(uploadCmd, &cmdFlags)
	uploadCmd.Flags().BoolVarP(&cmdFlags.watch, flags.Watch, flags.WatchShort, false, "Show a live view while the transfer runs (single file only)")

	downloadCmd := &cobra.Command{
		Use:   "download [remote-path...] [local-dest]",
		Short: "Download one or more objects",
		Long: `Downloads remote objects to the given local destination. With a single
object the destination names the file directly unless it is a directory;
with several objects it must be a directory and each file keeps its object
name.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remotePaths := args[:len(args)-1]
			dest := args[len(args)-1]

			if len(remotePaths) == 1 && !isDirTarget(dest) {
				return runSingleDownload(cmd, app, &cmdFlags, remotePaths[0], dest)
			}

			specs := make([]service.TransferSpec, 0, len(remotePaths))
			for _, remotePath := range remotePaths {
				specs = append(specs, service.TransferSpec{
					LocalFile:  filepath.Join(dest, path.Base(remotePath)),
					RemotePath: remotePath,
				})
			}

			snapshots, err := app.StorageService.DownloadMany(cmd.Context(), cmdFlags.target(), specs)
			if err != nil {
				return err
			}

			for i, snapshot := range snapshots {
				fmt.Printf("Downloaded %s to %s (%s)\n", specs[i].RemotePath, specs[i].LocalFile, storage.FormatBytes(snapshot.TotalBytes))
			}
			return nil
		},
	}
	downloadCmd.Flags().BoolVarP(&cmdFlags.watch, flags.Watch, flags.WatchShort, false, "Show a live view while the transfer runs (single object only)")

	catCmd := &cobra.Command{
		Use:   "cat [remote-path]",
		Short: "Write an object's content to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := app.StorageService.Cat(cmd.Context(), cmdFlags.target(), args[0], cmdFlags.maxSize)
			if err != nil {
				return fmt.Errorf("error reading object '%s': %w", args[0], err)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
	catCmd.Flags().Int64Var(&cmdFlags.maxSize, flags.MaxSize, 0, "Refuse objects larger than this many bytes (0 means no limit)")

	lsCmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List objects under a path",
		Long: `Lists the objects and prefixes directly below the given directory-like
path, or below the bucket root when no path is given. Without paging flags
all pages are drained; with them a single page and its continuation token
are shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listPath := ""
			if len(args) == 1 {
				listPath = args[0]
			}

			list, err := listObjects(cmd, app, &cmdFlags, listPath)
			if err != nil {
				return err
			}

			if len(list.Items) == 0 && len(list.Prefixes) == 0 {
				fmt.Println("No objects found.")
				return nil
			}
			fmt.Println(app.StorageFormatter.FormatObjectList(list))
			return nil
		},
	}
	lsCmd.Flags().IntVar(&cmdFlags.maxResults, flags.MaxResults, 0, "Return at most this many objects per page")
	lsCmd.Flags().StringVar(&cmdFlags.pageToken, flags.PageToken, "", "Resume listing from a previous page's token")

	statCmd := &cobra.Command{
		Use:   "stat [remote-path]",
		Short: "Show an object's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := app.StorageService.Stat(cmd.Context(), cmdFlags.target(), args[0])
			if err != nil {
				return fmt.Errorf("error fetching metadata for '%s': %w", args[0], err)
			}
			fmt.Println(app.StorageFormatter.FormatObjectDetails(md))
			return nil
		},
	}

	setMetaCmd := &cobra.Command{
		Use:   "set-meta [remote-path]",
		Short: "Update an object's writable metadata",
		Long: `Updates the writable metadata attributes of an object. Only the flags you
pass are sent: passing an empty string deletes the stored attribute, and
omitted flags leave their attributes untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md := metadataFromFlags(cmd, &cmdFlags)
			if md == nil {
				return fmt.Errorf("no metadata flags given; pass at least one of --%s, --%s, --%s, --%s, --%s",
					flags.ContentType, flags.CacheControl, flags.ContentDisposition, flags.ContentEncoding, flags.ContentLanguage)
			}

			updated, err := app.StorageService.SetMetadata(cmd.Context(), cmdFlags.target(), args[0], md)
			if err != nil {
				return fmt.Errorf("error updating metadata for '%s': %w", args[0], err)
			}
			fmt.Println(app.StorageFormatter.FormatObjectDetails(updated))
			return nil
		},
	}
	registerMetadataFlags(setMetaCmd, &cmdFlags)

	urlCmd := &cobra.Command{
		Use:   "url [remote-path]",
		Short: "Print a download URL for an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := app.StorageService.DownloadURL(cmd.Context(), cmdFlags.target(), args[0])
			if err != nil {
				return fmt.Errorf("error resolving download URL for '%s': %w", args[0], err)
			}
			fmt.Println(url)
			return nil
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm [remote-path]",
		Short: "Delete an object",
		Long:  `Deletes an object permanently. Asks for confirmation unless --force is given.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remotePath := args[0]

			if !cmdFlags.force {
				confirmed, err := app.Prompter.Confirm(
					fmt.Sprintf("You are about to permanently delete '%s'.", remotePath), remotePath)
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Println("Deletion aborted.")
					return nil
				}
			}

			if err := app.StorageService.Remove(cmd.Context(), cmdFlags.target(), remotePath); err != nil {
				return fmt.Errorf("error deleting '%s': %w", remotePath, err)
			}
			fmt.Printf("Object '%s' deleted.\n", remotePath)
			return nil
		},
	}
	rmCmd.Flags().BoolVarP(&cmdFlags.force, flags.Force, flags.ForceShort, false, "Skip the confirmation prompt")

	retryCmd := &cobra.Command{
		Use:   "retry [kind] [duration]",
		Short: "Show or set a retry window",
		Long: `Reads or stores the maximum retry time for one operation kind: download,
upload or operation. With only the kind the stored value is printed; with a
duration (e.g. 90s, 10m) the value is stored.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := retryKind(args[0])
			if err != nil {
				return err
			}

			if len(args) == 1 {
				window, err := app.StorageService.RetryTime(cmd.Context(), cmdFlags.target(), kind)
				if err != nil {
					return fmt.Errorf("error reading %s retry time: %w", kind, err)
				}
				fmt.Printf("%s retry time: %s\n", kind, window)
				return nil
			}

			window, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid duration '%s': %w", args[1], err)
			}
			if err := app.StorageService.SetRetryTime(cmd.Context(), cmdFlags.target(), kind, window); err != nil {
				return fmt.Errorf("error storing %s retry time: %w", kind, err)
			}
			fmt.Printf("%s retry time set to %s\n", kind, window)
			return nil
		},
	}

	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "Show aggregate bucket usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := app.StorageService.Usage(cmd.Context(), cmdFlags.target())
			if err != nil {
				return fmt.Errorf("error fetching bucket usage: %w", err)
			}

			providerName := cmdFlags.provider
			if providerName == "" {
				providerName = app.Config.DefaultProvider
			}
			fmt.Println(app.StorageFormatter.FormatUsage(providerName, cmdFlags.bucket, usage))
			return nil
		},
	}

	storageCmd.AddCommand(uploadCmd, downloadCmd, catCmd, lsCmd, statCmd, setMetaCmd, urlCmd, rmCmd, retryCmd, usageCmd)
	return storageCmd
}

func runSingleUpload(cmd *cobra.Command, app *appContainer, cmdFlags *storageFlags, localFile, remotePath string, md *storage.Metadata) error {
	task, release, err := app.StorageService.Upload(cmd.Context(), cmdFlags.target(), localFile, remotePath, md)
	if err != nil {
		return err
	}
	defer release()

	if cmdFlags.watch {
		finished, err := watchTask(fmt.Sprintf("Uploading %s to %s", localFile, remotePath), task.Done(), task.Err)
		if err != nil {
			return err
		}
		if !finished {
			return fmt.Errorf("upload interrupted")
		}
	}

	snapshot, err := task.Await(cmd.Context())
	if err != nil {
		return fmt.Errorf("error uploading '%s': %w", localFile, err)
	}

	fmt.Printf("Uploaded %s to %s\n", localFile, remotePath)
	fmt.Printf("Download URL: %s\n", snapshot.DownloadURL)
	return nil
}

func runSingleDownload(cmd *cobra.Command, app *appContainer, cmdFlags *storageFlags, remotePath, localFile string) error {
	task, release, err := app.StorageService.Download(cmd.Context(), cmdFlags.target(), remotePath, localFile)
	if err != nil {
		return err
	}
	defer release()

	if cmdFlags.watch {
		finished, err := watchTask(fmt.Sprintf("Downloading %s to %s", remotePath, localFile), task.Done(), task.Err)
		if err != nil {
			return err
		}
		if !finished {
			return fmt.Errorf("download interrupted")
		}
	}

	snapshot, err := task.Await(cmd.Context())
	if err != nil {
		return fmt.Errorf("error downloading '%s': %w", remotePath, err)
	}

	fmt.Printf("Downloaded %s to %s (%s)\n", remotePath, localFile, storage.FormatBytes(snapshot.TotalBytes))
	return nil
}

// listObjects returns a single page when paging flags are in play and
// otherwise drains every page into one merged listing.
func listObjects(cmd *cobra.Command, app *appContainer, cmdFlags *storageFlags, listPath string) (*storage.ObjectList, error) {
	opts := storage.ListOptions{MaxResults: cmdFlags.maxResults, PageToken: cmdFlags.pageToken}

	if cmdFlags.maxResults > 0 || cmdFlags.pageToken != "" {
		return app.StorageService.List(cmd.Context(), cmdFlags.target(), listPath, opts)
	}

	merged := &storage.ObjectList{}
	seenPrefixes := make(map[string]bool)
	for {
		page, err := app.StorageService.List(cmd.Context(), cmdFlags.target(), listPath, opts)
		if err != nil {
			return nil, err
		}
		merged.Items = append(merged.Items, page.Items...)
		for _, prefix := range page.Prefixes {
			if !seenPrefixes[prefix] {
				seenPrefixes[prefix] = true
				merged.Prefixes = append(merged.Prefixes, prefix)
			}
		}
		if page.NextPageToken == "" {
			return merged, nil
		}
		opts.PageToken = page.NextPageToken
	}
}

// registerMetadataFlags adds the writable-attribute flags shared by upload
// and set-meta.
func registerMetadataFlags(cmd *cobra.Command, cmdFlags *storageFlags) {
	cmd.Flags().StringVar(&cmdFlags.contentType, flags.ContentType, "", "Content-Type to store; empty string clears it")
	cmd.Flags().StringVar(&cmdFlags.cacheControl, flags.CacheControl, "", "Cache-Control to store; empty string clears it")
	cmd.Flags().StringVar(&cmdFlags.contentDisposition, flags.ContentDisposition, "", "Content-Disposition to store; empty string clears it")
	cmd.Flags().StringVar(&cmdFlags.contentEncoding, flags.ContentEncoding, "", "Content-Encoding to store; empty string clears it")
	cmd.Flags().StringVar(&cmdFlags.contentLanguage, flags.ContentLanguage, "", "Content-Language to store; empty string clears it")
}

// metadataFromFlags builds the metadata payload from the flags the user
// explicitly set, so an untouched flag never clears a stored attribute.
// Returns nil when no metadata flag was given.
func metadataFromFlags(cmd *cobra.Command, cmdFlags *storageFlags) *storage.Metadata {
	md := storage.NewMetadata()
	changed := false

	set := func(flagName, value string, field **string) {
		if cmd.Flags().Changed(flagName) {
			*field = storage.String(value)
			changed = true
		}
	}
	set(flags.ContentType, cmdFlags.contentType, &md.ContentType)
	set(flags.CacheControl, cmdFlags.cacheControl, &md.CacheControl)
	set(flags.ContentDisposition, cmdFlags.contentDisposition, &md.ContentDisposition)
	set(flags.ContentEncoding, cmdFlags.contentEncoding, &md.ContentEncoding)
	set(flags.ContentLanguage, cmdFlags.contentLanguage, &md.ContentLanguage)

	if !changed {
		return nil
	}
	return md
}

func retryKind(name string) (storage.RetryKind, error) {
	switch strings.ToLower(name) {
	case string(storage.RetryDownload):
		return storage.RetryDownload, nil
	case string(storage.RetryUpload):
		return storage.RetryUpload, nil
	case string(storage.RetryOperation):
		return storage.RetryOperation, nil
	default:
		return "", fmt.Errorf("invalid retry kind '%s'. Valid kinds are: %s, %s, %s",
			name, storage.RetryDownload, storage.RetryUpload, storage.RetryOperation)
	}
}

func remoteJoin(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// isDirTarget reports whether a download destination should be treated as a
// directory.
func isDirTarget(dest string) bool {
	if strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(os.PathSeparator)) {
		return true
	}
	info, err := os.Stat(dest)
	return err == nil && info.IsDir()
}
