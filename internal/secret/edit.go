package secret

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/exttool"
	"github.com/ein-plus/lain/internal/lainerr"
	"github.com/mattn/go-shellwords"
)

func recovery(path string) string {
	return fmt.Sprintf("fix %s and then:\nkubectl apply -f %s\nrm %s", path, path, path)
}

// Edit opens the decoded secret in editor and applies the result. editor is
// split like a shell would, so it may carry flags. When the
// edit cannot be applied the buffer is left on disk and the error carries
// the commands to finish the job by hand.
func (s *Store) Edit(ctx context.Context, name string, kind Kind, editor string) error {
	d, err := s.Fetch(ctx, name, kind)
	if err != nil {
		return err
	}
	doc, err := MarshalDocument(d)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(s.TempDir, name+"-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create edit buffer: %w", err)
	}
	path := f.Name()
	keep := false
	defer func() {
		if !keep {
			os.Remove(path)
		}
	}()

	_, err = f.Write(doc)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to write edit buffer: %w", err)
	}

	argv, err := shellwords.Parse(editor)
	if err != nil || len(argv) == 0 {
		return lainerr.New(lainerr.UserInput, err, "cannot run editor %q", editor).
			WithRemedy("set EDITOR to a command, like `vim` or `code --wait`")
	}

	res, err := s.Kubectl.Runner.Run(ctx, argv[0], append(argv[1:], path), exttool.RunOptions{Interactive: true})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		log.Warn("Editor exited with non-zero code", "editor", editor, "code", res.ExitCode)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read edit buffer: %w", err)
	}

	edited, err := ParseDocument(b)
	if err != nil {
		keep = true
		return lainerr.New(lainerr.UserInput, err, "not a valid secret after edit").WithRemedy(recovery(path))
	}

	if err := s.Apply(ctx, edited); err != nil {
		keep = true
		e := lainerr.New(lainerr.ExternalTool, err, "failed to apply secret %s", name)
		var toolErr *lainerr.Error
		if errors.As(err, &toolErr) {
			e.Code = toolErr.Code
		}
		return e.WithRemedy(recovery(path))
	}
	return nil
}
