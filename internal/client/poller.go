package client

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcriptor/internal/jobs"
)

// Poller reconciles a job's remote status at a fixed interval until a
// terminal state is observed. Requests for one job are strictly
// sequential; the loop never has more than one in flight.
type Poller struct {
	Client   *Client
	Interval time.Duration
	Log      *logrus.Logger

	// OnUpdate, when set, is invoked for every observed status change.
	OnUpdate func(jobs.StatusView)
}

// NewPoller creates a poller with the default one-second interval.
func NewPoller(c *Client, log *logrus.Logger) *Poller {
	return &Poller{
		Client:   c,
		Interval: time.Second,
		Log:      log,
	}
}

// Watch polls the job until it reaches a terminal state, then performs
// exactly one result fetch and returns it.
//
// Transient fetch errors keep the timer running and are retried on the
// next tick; a not-found response stops polling immediately.
func (p *Poller) Watch(ctx context.Context, jobID string) (jobs.ResultView, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastStatus jobs.StatusView
	for {
		view, err := p.Client.Status(ctx, jobID)
		switch {
		case errors.Is(err, ErrJobNotFound):
			p.Log.Warnf("Job %s unknown to server, stopping poll", jobID)
			return jobs.ResultView{}, err
		case err != nil:
			// Transient failure: keep polling.
			p.Log.Debugf("Status fetch for job %s failed, will retry: %v", jobID, err)
		default:
			if view != lastStatus {
				lastStatus = view
				if p.OnUpdate != nil {
					p.OnUpdate(view)
				}
			}
			if view.Status.IsTerminal() {
				return p.Client.Result(ctx, jobID)
			}
		}

		select {
		case <-ctx.Done():
			return jobs.ResultView{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
