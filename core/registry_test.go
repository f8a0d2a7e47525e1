package core

import (
	"sync"
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	reg := NewJobRegistry()

	id := reg.Create()
	job, ok := reg.Get(id)
	if !ok {
		t.Fatal("Get() did not find freshly created job")
	}
	if job.Status != JobPending {
		t.Errorf("new job status = %q, want %q", job.Status, JobPending)
	}

	reg.Update(id, func(j *Job) {
		j.Status = JobProcessing
		j.Total = 40
	})
	reg.Update(id, func(j *Job) { j.Progress += 20 })
	reg.Update(id, func(j *Job) { j.Progress += 20 })
	reg.Update(id, func(j *Job) { j.Status = JobDone })

	job, _ = reg.Get(id)
	if job.Status != JobDone || job.Progress != 40 || job.Total != 40 {
		t.Errorf("job after updates = %+v", job)
	}
}

func TestRegistryUnknownJob(t *testing.T) {
	reg := NewJobRegistry()
	if _, ok := reg.Get("no-such-job"); ok {
		t.Error("Get() reported an unknown job as present")
	}
	// update of an unknown id must be a no-op, not a panic
	reg.Update("no-such-job", func(j *Job) { j.Progress = 1 })
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	reg := NewJobRegistry()
	id := reg.Create()
	job, _ := reg.Get(id)
	job.Progress = 99
	again, _ := reg.Get(id)
	if again.Progress != 0 {
		t.Error("mutating the returned job leaked into the registry")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewJobRegistry()
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = reg.Create()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				reg.Update(id, func(j *Job) { j.Progress++ })
				reg.Get(id)
				reg.List()
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		job, _ := reg.Get(id)
		if job.Progress != 100 {
			t.Errorf("job %s progress = %d, want 100", id, job.Progress)
		}
	}
	if reg.Len() != 8 {
		t.Errorf("Len() = %d, want 8", reg.Len())
	}
}
