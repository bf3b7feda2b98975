package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/demolauncher/internal/observability"
	"github.com/3leaps/demolauncher/pkg/listing"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Browse demo sources interactively",
	Long: `Start an interactive session over the configured demo sources.

Type "help" inside the shell for the command list.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

var shellSource string

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().StringVarP(&shellSource, "source", "s", "", "Source to open (default: first configured)")
}

func runShell(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	sh := &shell{app: a, in: cmd.InOrStdin(), out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
	return sh.run(ctx, shellSource)
}

const shellHelp = `Commands:
  ls                 show the current folder
  cd <folder>        open a folder ("cd .." goes back, "cd /" to the root)
  back               return to the previous folder
  refresh            reload the current folder
  source [name]      list sources, or switch to one
  filter [pattern]   filter entries by text or glob; no pattern clears
  sort               toggle ascending/descending order
  get <file>         download a demo
  play <file>        download a demo and play it
  url <file>         print the download URL of a file
  pwd                print the current folder
  help               show this help
  quit               leave the shell`

// shell is an interactive session over one navigator.
type shell struct {
	app    *app
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	filter string
	desc   bool
}

func (s *shell) run(ctx context.Context, source string) error {
	if source == "" {
		source = s.app.nav.Sources()[0].Name
	}
	if _, err := s.exec(ctx, "source "+source); err != nil {
		s.printErr(err)
	}

	scanner := bufio.NewScanner(s.in)
	for {
		_, _ = fmt.Fprintf(s.out, "%s> ", s.prompt())
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(s.out)
			return scanner.Err()
		}
		quit, err := s.exec(ctx, scanner.Text())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.printErr(err)
		}
		if quit {
			return nil
		}
	}
}

func (s *shell) prompt() string {
	st := s.app.nav.State()
	if st.Source == "" {
		return "demolauncher"
	}
	return st.Source + ": " + st.Breadcrumb
}

func (s *shell) printErr(err error) {
	_, _ = fmt.Fprintf(s.errOut, "error: %v\n", err)
}

// exec runs one command line. The argument is the rest of the line, so
// names containing spaces need no quoting.
func (s *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	nav := s.app.nav

	switch strings.ToLower(verb) {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		_, _ = fmt.Fprintln(s.out, shellHelp)
	case "ls", "dir":
		return false, s.show()
	case "pwd":
		st := nav.State()
		if st.Source == "" {
			return false, errors.New("no source selected")
		}
		_, _ = fmt.Fprintf(s.out, "%s\n%s\n", st.Breadcrumb, st.Current)
	case "source":
		if arg == "" {
			for _, src := range nav.Sources() {
				_, _ = fmt.Fprintf(s.out, "  %s  %s\n", src.Name, src.URL)
			}
			return false, nil
		}
		return false, s.after(nav.SelectSource(ctx, arg))
	case "cd":
		switch arg {
		case "":
			return false, errors.New("usage: cd <folder>")
		case "..":
			return false, s.after(nav.Back(ctx))
		case "/":
			return false, s.after(nav.Home(ctx))
		}
		return false, s.after(nav.DescendByName(ctx, arg))
	case "back":
		return false, s.after(nav.Back(ctx))
	case "refresh":
		return false, s.after(nav.Refresh(ctx))
	case "filter":
		s.filter = arg
		return false, s.show()
	case "sort":
		s.desc = !s.desc
		return false, s.show()
	case "url":
		target, err := nav.ResolveFileByName(arg)
		if err != nil {
			return false, err
		}
		_, _ = fmt.Fprintln(s.out, target.URL)
	case "get":
		return false, s.get(ctx, arg)
	case "play":
		return false, s.play(ctx, arg)
	default:
		return false, fmt.Errorf("unknown command %q (try help)", verb)
	}
	return false, nil
}

// after shows result when the navigation succeeded.
func (s *shell) after(_ *listing.Result, err error) error {
	if err != nil {
		return err
	}
	return s.show()
}

func (s *shell) show() error {
	result := s.app.nav.Listing()
	if result == nil {
		return errors.New("nothing listed yet; pick a source")
	}
	if s.filter != "" {
		result = result.Filter(s.filter)
	}
	if s.desc {
		result = result.Sorted(true)
	}
	writeTable(s.out, s.app.nav.State(), result)
	if s.filter != "" {
		_, _ = fmt.Fprintf(s.out, "(filter: %s)\n", s.filter)
	}
	return nil
}

func (s *shell) get(ctx context.Context, name string) error {
	target, err := s.app.nav.ResolveFileByName(name)
	if err != nil {
		return err
	}
	downloaded, n, err := s.app.player.Fetch(ctx, target, progressPrinter(s.errOut, target.Name))
	if err != nil {
		endProgress(s.errOut)
		return err
	}
	if !downloaded {
		_, _ = fmt.Fprintf(s.out, "Demo already downloaded: %s\n", target.LocalPath)
		return nil
	}
	endProgress(s.errOut)
	_, _ = fmt.Fprintf(s.out, "Downloaded %s (%s)\n", target.Name, formatBytes(n))
	observability.CLILogger.Debug("demo downloaded", zap.String("path", target.LocalPath))
	return s.refreshPresence(ctx)
}

func (s *shell) play(ctx context.Context, name string) error {
	target, err := s.app.nav.ResolveFileByName(name)
	if err != nil {
		return err
	}
	report, err := s.app.player.Play(ctx, target, progressPrinter(s.errOut, target.Name))
	if err != nil {
		return err
	}
	if report.Downloaded {
		endProgress(s.errOut)
	}
	if report.Warning != "" {
		_, _ = fmt.Fprintf(s.errOut, "warning: %s\n", report.Warning)
	}
	_, _ = fmt.Fprintf(s.out, "Playing %s (pid %d)\n", target.Name, report.Launch.PID)
	if report.Downloaded {
		return s.refreshPresence(ctx)
	}
	return nil
}

// refreshPresence reloads the folder so the downloaded marker shows up.
func (s *shell) refreshPresence(ctx context.Context) error {
	_, err := s.app.nav.Refresh(ctx)
	return err
}
