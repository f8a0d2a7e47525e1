package core

import (
	"sync"
	"time"
)

// JobRegistry is a process-wide map of job id to job state. A single
// mutex guards all access; updates are short and never held across an
// extraction or embedding call, so coarse locking is enough here.
type JobRegistry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*Job)}
}

// Create registers a new pending job and returns its id.
func (r *JobRegistry) Create() string {
	id := NewJobID()
	now := time.Now().UTC()
	r.mu.Lock()
	r.jobs[id] = &Job{ID: id, Status: JobPending, CreatedAt: now, UpdatedAt: now}
	r.mu.Unlock()
	return id
}

// Get returns a copy of the job, or false if the id is unknown.
func (r *JobRegistry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Update applies mutate under the registry lock. Unknown ids are a
// no-op; a job is only ever mutated by the orchestrator that created it.
func (r *JobRegistry) Update(id string, mutate func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return
	}
	mutate(j)
	j.UpdatedAt = time.Now().UTC()
}

// List returns a snapshot of every known job. Jobs are never evicted,
// so this grows for the life of the process.
func (r *JobRegistry) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	return out
}

// Len reports how many jobs the registry holds.
func (r *JobRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
