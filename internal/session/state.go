package session

import (
	"time"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/infra/credentials"
)

// Video is the most recent finished clip of a session. Either URL (queue
// backend) or BlobKey (clip bytes held in the blob store) is set.
type Video struct {
	Backend   string    `json:"backend"`
	Model     string    `json:"model,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	URL       string    `json:"url,omitempty"`
	BlobKey   string    `json:"blob_key,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	MIMEType  string    `json:"mime_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// State is everything one user session owns. It is only touched while the
// session lock is held (see Manager.With), so it carries no mutex itself.
type State struct {
	id             string
	creds          *credentials.Store
	current        string
	generated      []string
	pending        []domain.PendingJob
	originalPrompt string
	enhancedPrompt string
	lastVideo      *Video
	createdAt      time.Time
	updatedAt      time.Time
	now            func() time.Time
}

func newState(id string, creds *credentials.Store, now func() time.Time) *State {
	t := now()
	return &State{id: id, creds: creds, createdAt: t, updatedAt: t, now: now}
}

func (s *State) ID() string { return s.id }

func (s *State) Credentials() *credentials.Store { return s.creds }

func (s *State) CurrentResult() string { return s.current }

func (s *State) Generated() []string { return append([]string(nil), s.generated...) }

func (s *State) LastVideo() *Video { return s.lastVideo }

func (s *State) touch() { s.updatedAt = s.now() }

// ApplyResult records a normalized generation result. Sync results update
// the current result; async results replace the pending image set.
func (s *State) ApplyResult(kind domain.OperationKind, res domain.GenerationResult, prompt string) {
	defer s.touch()
	switch {
	case res.URL != "":
		s.current = res.URL
	case len(res.URLs) > 0:
		s.current = res.URLs[0]
		if len(res.URLs) > 1 {
			s.generated = append([]string(nil), res.URLs...)
		}
	case len(res.Pending) > 0:
		kept := s.pending[:0:0]
		for _, j := range s.pending {
			if j.IsVideo() {
				kept = append(kept, j)
			}
		}
		created := s.now()
		for _, u := range res.Pending {
			kept = append(kept, domain.PendingJob{
				ID:        uuid.NewString(),
				Kind:      kind,
				URL:       u,
				Prompt:    prompt,
				CreatedAt: created,
			})
		}
		s.pending = kept
	}
}

// PendingURLs lists URLs of pending image jobs in submission order.
func (s *State) PendingURLs() []string {
	var urls []string
	for _, j := range s.pending {
		if !j.IsVideo() {
			urls = append(urls, j.URL)
		}
	}
	return urls
}

// ApplyPoll removes ready URLs from the pending set and credits the passes
// to the jobs still waiting. The first ready URL becomes the current result;
// with more than one ready URL the generated list is replaced by them.
func (s *State) ApplyPoll(ready []string, passes int) {
	defer s.touch()
	isReady := make(map[string]bool, len(ready))
	for _, u := range ready {
		isReady[u] = true
	}
	kept := s.pending[:0:0]
	for _, j := range s.pending {
		if !j.IsVideo() && isReady[j.URL] {
			continue
		}
		if !j.IsVideo() {
			j.Attempts += passes
		}
		kept = append(kept, j)
	}
	s.pending = kept
	if len(ready) == 0 {
		return
	}
	s.current = ready[0]
	if len(ready) > 1 {
		s.generated = append([]string(nil), ready...)
	}
}

// AddVideoJob registers an async video request.
func (s *State) AddVideoJob(requestID, model, prompt string) domain.PendingJob {
	defer s.touch()
	job := domain.PendingJob{
		ID:        uuid.NewString(),
		Kind:      domain.OperationVideo,
		RequestID: requestID,
		Model:     model,
		Prompt:    prompt,
		CreatedAt: s.now(),
	}
	s.pending = append(s.pending, job)
	return job
}

// Job finds a pending job by id, or a video job by backend request id.
func (s *State) Job(id string) (domain.PendingJob, bool) {
	for _, j := range s.pending {
		if j.ID == id || (j.IsVideo() && j.RequestID == id) {
			return j, true
		}
	}
	return domain.PendingJob{}, false
}

// MarkChecked increments the attempt counter of one job.
func (s *State) MarkChecked(id string) {
	for i := range s.pending {
		if s.pending[i].ID == id {
			s.pending[i].Attempts++
			s.touch()
			return
		}
	}
}

// RemoveJob drops a job on success or explicit dismissal.
func (s *State) RemoveJob(id string) bool {
	for i, j := range s.pending {
		if j.ID == id || (j.IsVideo() && j.RequestID == id) {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			s.touch()
			return true
		}
	}
	return false
}

// SetPrompt records the user's prompt. A changed prompt invalidates the
// enhanced version.
func (s *State) SetPrompt(prompt string) {
	if prompt != s.originalPrompt {
		s.enhancedPrompt = ""
	}
	s.originalPrompt = prompt
	s.touch()
}

func (s *State) SetEnhancedPrompt(original, enhanced string) {
	s.originalPrompt = original
	s.enhancedPrompt = enhanced
	s.touch()
}

// EffectivePrompt returns the enhanced prompt when it belongs to prompt.
func (s *State) EffectivePrompt(prompt string) string {
	if prompt == s.originalPrompt && s.enhancedPrompt != "" {
		return s.enhancedPrompt
	}
	return prompt
}

func (s *State) SetVideo(v Video) {
	v.CreatedAt = s.now()
	s.lastVideo = &v
	s.touch()
}

// Snapshot is the serializable view of a session.
type Snapshot struct {
	ID             string                        `json:"id"`
	CurrentResult  string                        `json:"current_result,omitempty"`
	Generated      []string                      `json:"generated,omitempty"`
	Pending        []domain.PendingJob           `json:"pending"`
	OriginalPrompt string                        `json:"original_prompt,omitempty"`
	EnhancedPrompt string                        `json:"enhanced_prompt,omitempty"`
	LastVideo      *Video                        `json:"last_video,omitempty"`
	Credentials    map[string]credentials.Source `json:"credentials"`
	CreatedAt      time.Time                     `json:"created_at"`
	UpdatedAt      time.Time                     `json:"updated_at"`
}

func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		ID:             s.id,
		CurrentResult:  s.current,
		Generated:      s.Generated(),
		Pending:        append([]domain.PendingJob{}, s.pending...),
		OriginalPrompt: s.originalPrompt,
		EnhancedPrompt: s.enhancedPrompt,
		Credentials:    s.creds.Sources(),
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.updatedAt,
	}
	if s.lastVideo != nil {
		v := *s.lastVideo
		snap.LastVideo = &v
	}
	return snap
}
