package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/hpungsan/ecapsule/internal/api"
	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/errors"
	"github.com/hpungsan/ecapsule/internal/files"
	"github.com/hpungsan/ecapsule/internal/wizard"
)

var (
	errAbandoned   = stderrors.New("capsule abandoned")
	errInputClosed = stderrors.New("input closed before the capsule was created")
)

const displayTimeLayout = "2006-01-02 15:04"

// action is what a screen asks the loop to do next.
type action int

const (
	actNext action = iota
	actBack
	actQuit
)

// prompter reads one line per answer.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(r io.Reader, w io.Writer) *prompter {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &prompter{in: s, out: w}
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// command recognizes the navigation words accepted on every prompt.
func command(line string) (action, bool) {
	switch line {
	case ":back", ":b":
		return actBack, true
	case ":quit", ":q":
		return actQuit, true
	}
	return actNext, false
}

// session is one terminal run of the wizard.
type session struct {
	w            *wizard.Wizard
	p            *prompter
	maxFileBytes int64

	listFriends   func(context.Context) ([]api.Friend, error)
	friends       []api.Friend
	friendsLoaded bool
}

// runWizard shows one screen per step until the capsule is created or the
// user quits. A blank answer keeps the current value; a blank line on a list
// screen moves on; on the final step it submits.
func runWizard(ctx context.Context, w *wizard.Wizard, p *prompter, maxFileBytes int64, listFriends func(context.Context) ([]api.Friend, error)) (*api.Created, error) {
	s := &session{w: w, p: p, maxFileBytes: maxFileBytes, listFriends: listFriends}
	return s.run(ctx)
}

func (s *session) run(ctx context.Context) (*api.Created, error) {
	fmt.Fprintln(s.p.out, "Type :back to go back or :quit to give up.")
	for {
		step := s.w.Step()
		s.renderHeader()

		var act action
		var err error
		switch {
		case step.Owns(capsule.FieldImages):
			act, err = s.imagesScreen()
		case step.Owns(capsule.FieldSharedWith):
			s.loadFriends(ctx)
			act, err = s.sharingScreen()
		case step.Key == "captions":
			act, err = s.captionsScreen()
		case len(step.Fields) == 0:
			act, err = s.summaryScreen()
		default:
			act, err = s.fieldsScreen(step.Fields)
		}
		if err != nil {
			return nil, err
		}

		switch act {
		case actQuit:
			return nil, errAbandoned
		case actBack:
			s.w.Back()
		case actNext:
			if !s.w.IsFinal() {
				s.w.Next()
				continue
			}
			created, err := s.w.Submit(ctx)
			if err == nil {
				return created, nil
			}
			// Rejections are shown by the next render; the draft is kept.
			if !errors.Is(err, errors.ErrValidationFailed) &&
				!errors.Is(err, errors.ErrSubmitFailed) &&
				!errors.Is(err, errors.ErrSubmitInFlight) {
				return nil, err
			}
		}
	}
}

func (s *session) renderHeader() {
	steps := s.w.Steps()
	i := s.w.Index()
	fmt.Fprintf(s.p.out, "\n== %d/%d %s ==\n", i+1, len(steps), steps[i].Title)
	errs := s.w.Errors()
	for _, name := range errs.Fields() {
		fmt.Fprintf(s.p.out, "  ! %s\n", errs[name])
	}
}

func (s *session) warn(err error) {
	msg := err.Error()
	var cErr *errors.CapsuleError
	if stderrors.As(err, &cErr) {
		msg = cErr.Message
	}
	fmt.Fprintf(s.p.out, "  ! %s\n", msg)
}

func (s *session) fieldsScreen(fields []string) (action, error) {
	for _, field := range fields {
		for {
			label := fmt.Sprintf("%s [%s]: ", fieldLabel(field), currentValue(s.w.Draft(), field))
			line, err := s.p.ask(label)
			if err != nil {
				return actQuit, err
			}
			if act, ok := command(line); ok {
				return act, nil
			}
			if line == "" {
				break
			}
			if err := s.w.SetField(field, line); err != nil {
				s.warn(err)
				continue
			}
			break
		}
	}
	return actNext, nil
}

func (s *session) imagesScreen() (action, error) {
	printImages(s.p.out, s.w.Draft())
	for {
		line, err := s.p.ask("Image path (:rm N to remove, enter to continue): ")
		if err != nil {
			return actQuit, err
		}
		if act, ok := command(line); ok {
			return act, nil
		}
		if line == "" {
			return actNext, nil
		}

		if arg, ok := strings.CutPrefix(line, ":rm"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil {
				fmt.Fprintln(s.p.out, "  ! :rm takes an image number")
				continue
			}
			if err := s.w.RemoveImage(n - 1); err != nil {
				s.warn(err)
				continue
			}
			printImages(s.p.out, s.w.Draft())
			continue
		}

		blob, err := files.ReadBlob(line, s.maxFileBytes)
		if err != nil {
			s.warn(err)
			continue
		}
		added, err := s.w.AddImage(blob)
		if err != nil {
			return actQuit, err
		}
		if !added {
			fmt.Fprintf(s.p.out, "  ! %s: %s\n", blob.Name, s.w.FileErrors()[blob.Name])
			continue
		}
		printImages(s.p.out, s.w.Draft())
	}
}

func (s *session) captionsScreen() (action, error) {
	printImages(s.p.out, s.w.Draft())
	for {
		line, err := s.p.ask(`Caption as "N text" (enter to continue): `)
		if err != nil {
			return actQuit, err
		}
		if act, ok := command(line); ok {
			return act, nil
		}
		if line == "" {
			return actNext, nil
		}

		num, text, _ := strings.Cut(line, " ")
		n, err := strconv.Atoi(num)
		if err != nil {
			fmt.Fprintln(s.p.out, "  ! start with the image number")
			continue
		}
		if err := s.w.SetImageCaption(n-1, strings.TrimSpace(text)); err != nil {
			s.warn(err)
			continue
		}
		printImages(s.p.out, s.w.Draft())
	}
}

func (s *session) loadFriends(ctx context.Context) {
	if s.friendsLoaded || s.listFriends == nil {
		return
	}
	friends, err := s.listFriends(ctx)
	if err != nil {
		fmt.Fprintf(s.p.out, "  (could not load friends: %v; enter ids directly)\n", err)
		return
	}
	s.friends = friends
	s.friendsLoaded = true
}

// sharingScreen toggles recipients. A number picks from the listed friends;
// anything else is taken as an id.
func (s *session) sharingScreen() (action, error) {
	printFriends(s.p.out, s.friends, s.w.Draft().SharedWith)
	for {
		line, err := s.p.ask("Toggle a friend by number or id (enter to submit): ")
		if err != nil {
			return actQuit, err
		}
		if act, ok := command(line); ok {
			return act, nil
		}
		if line == "" {
			return actNext, nil
		}

		id := line
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(s.friends) {
			id = string(s.friends[n-1].ID)
		}
		if err := s.w.ToggleRecipient(id); err != nil {
			s.warn(err)
			continue
		}
		printFriends(s.p.out, s.friends, s.w.Draft().SharedWith)
	}
}

func (s *session) summaryScreen() (action, error) {
	printSummary(s.p.out, s.w.Draft())
	line, err := s.p.ask("Press enter to continue: ")
	if err != nil {
		return actQuit, err
	}
	if act, ok := command(line); ok {
		return act, nil
	}
	return actNext, nil
}

func fieldLabel(field string) string {
	switch field {
	case capsule.FieldTitle:
		return "Title"
	case capsule.FieldDescription:
		return "Description"
	case capsule.FieldTime:
		return "Opening time (YYYY-MM-DD HH:MM)"
	case capsule.FieldVision:
		return "Vision"
	case capsule.FieldPrivacy:
		return "Privacy (private|friends|public)"
	case capsule.FieldDesign:
		ids := make([]string, 0, 4)
		for _, d := range capsule.Designs() {
			ids = append(ids, d.ID)
		}
		return fmt.Sprintf("Design (%s)", strings.Join(ids, "|"))
	}
	return field
}

func currentValue(d capsule.Draft, field string) string {
	switch field {
	case capsule.FieldTitle:
		return d.Title
	case capsule.FieldDescription:
		return d.Description
	case capsule.FieldTime:
		if d.OpeningTime.IsZero() {
			return ""
		}
		return d.OpeningTime.Local().Format(displayTimeLayout)
	case capsule.FieldVision:
		return d.Vision
	case capsule.FieldPrivacy:
		return string(d.Privacy)
	case capsule.FieldDesign:
		return d.Design
	}
	return ""
}

func printImages(w io.Writer, d capsule.Draft) {
	if len(d.Images) == 0 {
		fmt.Fprintln(w, "  (no images)")
		return
	}
	for i, img := range d.Images {
		if img.Caption == "" {
			fmt.Fprintf(w, "  %d. %s\n", i+1, img.Name)
			continue
		}
		fmt.Fprintf(w, "  %d. %s  %q\n", i+1, img.Name, img.Caption)
	}
}

func printFriends(w io.Writer, friends []api.Friend, selected []string) {
	listed := make(map[string]bool, len(friends))
	for i, f := range friends {
		id := string(f.ID)
		listed[id] = true
		mark := " "
		if slices.Contains(selected, id) {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %d. %s (%s)\n", mark, i+1, f.Name, id)
	}
	for _, id := range selected {
		if !listed[id] {
			fmt.Fprintf(w, "  [x] %s\n", id)
		}
	}
	if len(friends) == 0 && len(selected) == 0 {
		fmt.Fprintln(w, "  (nobody selected)")
	}
}

func printSummary(w io.Writer, d capsule.Draft) {
	design := d.Design
	if entry, ok := capsule.LookupDesign(d.Design); ok {
		design = entry.Name
	}
	fmt.Fprintf(w, "  Title:       %s\n", d.Title)
	fmt.Fprintf(w, "  Description: %s\n", d.Description)
	fmt.Fprintf(w, "  Opens:       %s\n", currentValue(d, capsule.FieldTime))
	fmt.Fprintf(w, "  Images:      %d\n", len(d.Images))
	fmt.Fprintf(w, "  Vision:      %s\n", d.Vision)
	fmt.Fprintf(w, "  Privacy:     %s\n", d.Privacy)
	fmt.Fprintf(w, "  Design:      %s\n", design)
}
