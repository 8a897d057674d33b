package client

import (
	"context"
	"io"
	"strings"
	"sync"

	"timecapsule/pkg/apperr"
	"timecapsule/pkg/guard"
	"timecapsule/pkg/media"
	"timecapsule/pkg/members"
	"timecapsule/pkg/models"
	"timecapsule/pkg/timeutil"
	"timecapsule/pkg/view"
)

// Outcome of a form submission. Ignored is set when the submit arrived while
// another one was in flight; nothing was sent in that case.
type Outcome struct {
	Ignored bool
	Capsule view.Capsule
	Entry   view.Entry
	Warning *members.PartialSuccess
}

// CapsuleInput is what a capsule form collects.
type CapsuleInput struct {
	Title       string
	Description string
	Content     string
	LockDate    string
	Media       []media.Ref
	// File is uploaded on submit and appended to Media.
	File *Attachment
}

func (in CapsuleInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.ErrTitleRequired
	}
	if _, err := timeutil.ParseLockDate(in.LockDate); err != nil {
		return apperr.Validation("lock_date", err.Error())
	}
	return nil
}

func (in CapsuleInput) request(kind models.Kind) models.CreateCapsuleRequest {
	return models.CreateCapsuleRequest{
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		Media:       append([]media.Ref(nil), in.Media...),
		LockDate:    in.LockDate,
		Type:        kind,
	}
}

// attach uploads in.File, if any, and adds the stored object to req.
func (in CapsuleInput) attach(ctx context.Context, c *Client, s Session, req *models.CreateCapsuleRequest) error {
	if in.File == nil {
		return nil
	}
	up, err := c.Upload(ctx, s, in.File.Filename, in.File.ContentType, in.File.Body)
	if err != nil {
		return err
	}
	req.Media = append(req.Media, media.Ref{URL: up.URL, Type: up.Type})
	return nil
}

// PersonalForm submits personal capsules.
type PersonalForm struct {
	c     *Client
	s     Session
	guard guard.Guard
}

// NewPersonalForm binds a form to a client and session.
func NewPersonalForm(c *Client, s Session) *PersonalForm {
	return &PersonalForm{c: c, s: s}
}

// Busy reports whether a submission is in flight.
func (f *PersonalForm) Busy() bool { return f.guard.Busy() }

// Submit validates locally, uploads the attached file if there is one and
// then creates the capsule. A rejected upload stops the submission.
func (f *PersonalForm) Submit(ctx context.Context, in CapsuleInput) (Outcome, error) {
	var out Outcome
	ran, err := f.guard.Run(ctx, func(ctx context.Context) error {
		if err := in.validate(); err != nil {
			return err
		}
		req := in.request(models.KindPersonal)
		if err := in.attach(ctx, f.c, f.s, &req); err != nil {
			return err
		}
		resp, err := f.c.CreateCapsule(ctx, f.s, req)
		if err != nil {
			return err
		}
		out.Capsule = resp.Capsule
		return nil
	})
	out.Ignored = !ran
	return out, err
}

// CollaborativeForm submits collaborative capsules. Members are typed as
// free text, e.g. "Jane Doe <jane@x.com>, bob@y.com".
type CollaborativeForm struct {
	c     *Client
	s     Session
	guard guard.Guard

	mu      sync.Mutex
	pending *Outcome
}

// NewCollaborativeForm binds a form to a client and session.
func NewCollaborativeForm(c *Client, s Session) *CollaborativeForm {
	return &CollaborativeForm{c: c, s: s}
}

// Busy reports whether a submission is in flight.
func (f *CollaborativeForm) Busy() bool { return f.guard.Busy() }

// Submit parses the member text, creates the capsule and reports members
// that were not added as a warning. A warning leaves the outcome pending
// until Continue is called.
func (f *CollaborativeForm) Submit(ctx context.Context, in CapsuleInput, memberText string) (Outcome, error) {
	var out Outcome
	ran, err := f.guard.Run(ctx, func(ctx context.Context) error {
		proposed, err := members.ParseRequired(memberText)
		if err != nil {
			return err
		}
		if err := in.validate(); err != nil {
			return err
		}
		req := in.request(models.KindCollaborative)
		req.MemberEmails = proposed
		if err := in.attach(ctx, f.c, f.s, &req); err != nil {
			return err
		}
		resp, err := f.c.CreateCapsule(ctx, f.s, req)
		if err != nil {
			return err
		}
		out.Capsule = resp.Capsule
		out.Warning = members.Check(resp.MemberStatus)
		if out.Warning != nil {
			f.mu.Lock()
			pending := out
			f.pending = &pending
			f.mu.Unlock()
		}
		return nil
	})
	out.Ignored = !ran
	return out, err
}

// Pending returns the outcome awaiting acknowledgment, if any.
func (f *CollaborativeForm) Pending() (Outcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return Outcome{}, false
	}
	return *f.pending, true
}

// Continue acknowledges a partial-success warning and returns the capsule
// that was created. Nothing is resubmitted.
func (f *CollaborativeForm) Continue() (view.Capsule, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return view.Capsule{}, false
	}
	c := f.pending.Capsule
	f.pending = nil
	return c, true
}

// Attachment is a file to upload before an entry is created.
type Attachment struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// EntryInput is what the entry form collects.
type EntryInput struct {
	Content  string
	LockDate string
	File     *Attachment
}

// EntryForm adds entries to one collaborative capsule.
type EntryForm struct {
	c         *Client
	s         Session
	capsuleID string
	guard     guard.Guard
}

// NewEntryForm binds a form to a capsule.
func NewEntryForm(c *Client, s Session, capsuleID string) *EntryForm {
	return &EntryForm{c: c, s: s, capsuleID: capsuleID}
}

// Busy reports whether a submission is in flight.
func (f *EntryForm) Busy() bool { return f.guard.Busy() }

// Submit uploads the attachment, if any, then creates the entry referencing
// it. A rejected upload stops the submission.
func (f *EntryForm) Submit(ctx context.Context, in EntryInput) (Outcome, error) {
	var out Outcome
	ran, err := f.guard.Run(ctx, func(ctx context.Context) error {
		if strings.TrimSpace(in.Content) == "" && in.File == nil {
			return apperr.ErrContentRequired
		}
		if _, err := timeutil.ParseLockDate(in.LockDate); err != nil {
			return apperr.Validation("lock_date", err.Error())
		}
		req := models.CreateEntryRequest{Content: in.Content, LockDate: in.LockDate}
		if in.File != nil {
			up, err := f.c.Upload(ctx, f.s, in.File.Filename, in.File.ContentType, in.File.Body)
			if err != nil {
				return err
			}
			req.Media = []media.Ref{{URL: up.URL, Type: up.Type}}
		}
		e, err := f.c.AddEntry(ctx, f.s, f.capsuleID, req)
		if err != nil {
			return err
		}
		out.Entry = e
		return nil
	})
	out.Ignored = !ran
	return out, err
}
