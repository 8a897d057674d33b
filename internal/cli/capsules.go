package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"timecapsule/pkg/apperr"
	"timecapsule/pkg/client"
	"timecapsule/pkg/media"
	"timecapsule/pkg/models"
)

type capsuleFlags struct {
	title       string
	description string
	content     string
	lockDate    string
	media       []string
	file        string
	fileType    string
}

func (f *capsuleFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "capsule title")
	fl.StringVar(&f.description, "description", "", "short description")
	fl.StringVar(&f.content, "content", "", "capsule content")
	fl.StringVar(&f.lockDate, "lock-date", "", "unlock moment, YYYY-MM-DD or RFC3339")
	fl.StringSliceVar(&f.media, "media", nil, "media URLs to attach")
	fl.StringVar(&f.file, "file", "", "file to upload and attach")
	fl.StringVar(&f.fileType, "type", "", "content type of the file (guessed from the name by default)")
}

// input builds the form input. The returned close func releases the
// attached file, if one was opened.
func (f *capsuleFlags) input() (client.CapsuleInput, func(), error) {
	in := client.CapsuleInput{
		Title:       f.title,
		Description: f.description,
		Content:     f.content,
		LockDate:    f.lockDate,
	}
	for _, u := range f.media {
		if u = strings.TrimSpace(u); u != "" {
			in.Media = append(in.Media, media.Ref{URL: u})
		}
	}
	if f.file == "" {
		return in, func() {}, nil
	}
	fh, err := os.Open(f.file)
	if err != nil {
		return in, nil, apperr.Validation("file", err.Error())
	}
	in.File = &client.Attachment{Filename: filepath.Base(f.file), ContentType: guessType(f.file, f.fileType), Body: fh}
	return in, func() { _ = fh.Close() }, nil
}

func (a *app) createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a capsule",
	}
	cmd.AddCommand(a.createPersonalCmd(), a.createCollaborativeCmd())
	return cmd
}

func (a *app) createPersonalCmd() *cobra.Command {
	var f capsuleFlags
	cmd := &cobra.Command{
		Use:   "personal",
		Short: "Create a capsule only you can see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, done, err := f.input()
			if err != nil {
				return err
			}
			defer done()
			form := client.NewPersonalForm(a.client, a.cfg.Session())
			out, err := form.Submit(cmd.Context(), in)
			if err != nil {
				return err
			}
			writeCapsule(cmd.OutOrStdout(), out.Capsule)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func (a *app) createCollaborativeCmd() *cobra.Command {
	var (
		f       capsuleFlags
		members string
		yes     bool
	)
	cmd := &cobra.Command{
		Use:   "collaborative",
		Short: "Create a capsule shared with members",
		Long: `Create a capsule shared with members. Members are given as
"Name <email>" or bare emails separated by commas. Members
that are not registered are reported and left out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, done, err := f.input()
			if err != nil {
				return err
			}
			defer done()
			form := client.NewCollaborativeForm(a.client, a.cfg.Session())
			out, err := form.Submit(cmd.Context(), in, members)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			capsule := out.Capsule
			if out.Warning != nil {
				fmt.Fprintln(w, out.Warning.Warning())
				if !yes {
					fmt.Fprint(w, "Press enter to continue ")
					_, _ = bufio.NewReader(a.in).ReadString('\n')
					fmt.Fprintln(w)
				}
				if c, ok := form.Continue(); ok {
					capsule = c
				}
			}
			writeCapsule(w, capsule)
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&members, "members", "", "members, e.g. \"Bob <bob@example.com>, carol@example.com\"")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "acknowledge warnings without prompting")
	return cmd
}

func (a *app) entryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Manage entries of collaborative capsules",
	}
	var content, lockDate, file, contentType string
	add := &cobra.Command{
		Use:   "add <capsule-id>",
		Short: "Add an entry, optionally with one attached file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := client.EntryInput{Content: content, LockDate: lockDate}
			if file != "" {
				fh, err := os.Open(file)
				if err != nil {
					return apperr.Validation("file", err.Error())
				}
				defer fh.Close()
				in.File = &client.Attachment{Filename: filepath.Base(file), ContentType: guessType(file, contentType), Body: fh}
			}
			form := client.NewEntryForm(a.client, a.cfg.Session(), args[0])
			out, err := form.Submit(cmd.Context(), in)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "entry added to %s\n", args[0])
			writeEntry(w, out.Entry)
			return nil
		},
	}
	add.Flags().StringVar(&content, "content", "", "entry text")
	add.Flags().StringVar(&lockDate, "lock-date", "", "unlock moment, YYYY-MM-DD or RFC3339")
	add.Flags().StringVar(&file, "file", "", "file to upload and attach")
	add.Flags().StringVar(&contentType, "type", "", "content type of the file (guessed from the name by default)")
	cmd.AddCommand(add)
	return cmd
}

func (a *app) uploadCmd() *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a media file and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			fh, err := os.Open(path)
			if err != nil {
				return apperr.Validation("file", err.Error())
			}
			defer fh.Close()
			var size int64
			if fi, err := fh.Stat(); err == nil {
				size = fi.Size()
			}
			resp, err := a.client.Upload(cmd.Context(), a.cfg.Session(), filepath.Base(path), guessType(path, contentType), fh)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%s, %s)\n%s\n", filepath.Base(path), humanize.IBytes(uint64(size)), resp.Type, resp.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&contentType, "type", "", "content type (guessed from the name by default)")
	return cmd
}

func guessType(path, declared string) string {
	if declared != "" {
		return declared
	}
	return media.TypeForFilename(path)
}

func (a *app) listCmd() *cobra.Command {
	var kind, output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your capsules grouped by creation day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k := models.Kind(strings.ToLower(kind))
			if k != "" && !k.Valid() {
				return apperr.Validation("type", "type must be personal or collaborative")
			}
			tree, err := a.client.Tree(cmd.Context(), a.cfg.Session(), k)
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(cmd.OutOrStdout(), tree)
			}
			writeTree(cmd.OutOrStdout(), tree)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "type", "", "only personal or collaborative capsules")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <capsule-id>",
		Short: "Show one capsule and its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client.GetCapsule(cmd.Context(), a.cfg.Session(), args[0])
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			writeCapsule(cmd.OutOrStdout(), c)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}
