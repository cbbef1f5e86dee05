package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// maxInstances caps overlapping runs of one job; further fires are dropped.
const maxInstances = 3

// misfireGrace is how late a fire may be delivered before it is skipped
// entirely, e.g. after the process was suspended.
const misfireGrace = 60 * time.Second

// Job is one scheduled unit of work.
type job struct {
	name     string
	run      func(ctx context.Context)
	interval time.Duration // interval jobs
	atHour   int           // daily jobs
	atMinute int
	daily    bool
	runNow   bool
	running  atomic.Int32
}

// Scheduler runs background jobs anchored to one timezone. Late fires past
// the grace window are coalesced into the next slot instead of bursting.
type Scheduler struct {
	location *time.Location
	jobs     []*job
	wg       sync.WaitGroup
	started  bool
}

func New(timezone string) (*Scheduler, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Scheduler{location: location}, nil
}

// AddInterval registers a job firing every interval. With runNow the first
// run happens at start instead of after the first interval.
func (s *Scheduler) AddInterval(name string, interval time.Duration, runNow bool, run func(ctx context.Context)) {
	s.jobs = append(s.jobs, &job{name: name, run: run, interval: interval, runNow: runNow})
}

// AddDaily registers a job firing once a day at the given local time.
func (s *Scheduler) AddDaily(name string, hour, minute int, run func(ctx context.Context)) {
	s.jobs = append(s.jobs, &job{name: name, run: run, daily: true, atHour: hour, atMinute: minute})
}

// Start launches all registered jobs. They stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if s.started {
		return
	}
	s.started = true

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, j)
	}
	log.Infof("Scheduler started with %d jobs (%s)", len(s.jobs), s.location)
}

// Wait blocks until all job loops have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, j *job) {
	defer s.wg.Done()

	if j.runNow {
		s.dispatch(ctx, j)
	}

	for {
		fireAt := s.next(j)
		timer := time.NewTimer(time.Until(fireAt))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if late := time.Since(fireAt); late > misfireGrace {
			log.Warnf("⏭ Job %q fired %s late, skipping misfired run", j.name, late.Round(time.Second))
			continue
		}
		s.dispatch(ctx, j)
	}
}

// next computes the job's next fire time in the scheduler's timezone.
func (s *Scheduler) next(j *job) time.Time {
	now := time.Now().In(s.location)
	if !j.daily {
		return now.Add(j.interval)
	}

	fireAt := time.Date(now.Year(), now.Month(), now.Day(), j.atHour, j.atMinute, 0, 0, s.location)
	if !fireAt.After(now) {
		fireAt = fireAt.AddDate(0, 0, 1)
	}
	return fireAt
}

// dispatch runs the job in its own goroutine with panic isolation. Fires
// beyond the overlap cap are dropped.
func (s *Scheduler) dispatch(ctx context.Context, j *job) {
	if n := j.running.Add(1); n > maxInstances {
		j.running.Add(-1)
		log.Warnf("⏭ Job %q already has %d instances running, skipping", j.name, maxInstances)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer j.running.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("❌ Job %q panicked: %v", j.name, r)
			}
		}()

		started := time.Now()
		j.run(ctx)
		log.Debugf("Job %q finished in %s", j.name, time.Since(started).Round(time.Millisecond))
	}()
}
