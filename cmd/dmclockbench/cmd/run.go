package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/foodotbar/dmclock/internal/dmclock"
	"github.com/foodotbar/dmclock/internal/dmclock/clockutil"
	dmmetrics "github.com/foodotbar/dmclock/internal/dmclock/metrics"

	k8sclock "k8s.io/apimachinery/pkg/util/clock"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drives a synthetic multi-client workload against the dmClock scheduler until interrupted",
		RunE:  runBench,
	}
	return cmd
}

// createContextWithShutdown returns a context cancelled on SIGINT/SIGTERM.
func createContextWithShutdown() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}

func runBench(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := createContextWithShutdown()
	m := dmmetrics.New()

	if config.Metrics.Enabled {
		go serveMetrics(config.Metrics.ListenAddress)
	}

	clientInfo := make(map[string]dmclock.ClientInfo, len(config.Clients))
	for id, c := range config.Clients {
		clientInfo[id] = dmclock.NewClientInfo(c.Reservation, c.Weight, c.Limit)
	}

	now := clockutil.FromClock(k8sclock.RealClock{})

	core, err := dmclock.NewScheduler(dmclock.Options[string, string]{
		ClientInfoFn: func(client string) dmclock.ClientInfo {
			return clientInfo[client]
		},
		Now:             now,
		AllowLimitBreak: config.AllowLimitBreak,
		UseHeap:         config.UseHeap,
		OnEvict: func(client string) {
			m.DeleteQueueDepth(client)
		},
		DispatchObserver: func(phase dmclock.Phase) {
			m.ObserveDispatch(phase.String())
		},
		Log: log.WithField("component", "dmclockbench"),
	})
	if err != nil {
		return err
	}

	cleaner, err := dmclock.NewCleaner(core, dmclock.CleanerConfig{
		IdleAge:   config.Cleaner.IdleAge,
		EraseAge:  config.Cleaner.EraseAge,
		CheckTime: config.Cleaner.CheckTime,
	}, log.WithField("component", "cleaner"), func(erased, idled, tracked int) {
		m.ObserveCleanerSweep(erased, idled)
		m.SetClientsTracked(tracked)
	})
	if err != nil {
		return err
	}
	cleaner.Start()
	defer cleaner.Stop()

	var wg sync.WaitGroup
	switch config.Facade {
	case "pull":
		runPull(ctx, &wg, core, clientInfo, m)
	case "push":
		runPush(ctx, &wg, core, clientInfo, m)
	default:
		return fmt.Errorf("dmclockbench: unknown facade %q", config.Facade)
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.WithField("address", addr).Info("dmclockbench: serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("dmclockbench: metrics server failed")
	}
}

// runPull drives the pull façade: one producer goroutine per client
// enqueues requests at a jittered interval, and one consumer goroutine
// polls PullRequest in a loop, sleeping until the next future wakeup when
// told to.
func runPull(ctx context.Context, wg *sync.WaitGroup, core *dmclock.Scheduler[string, string], clients map[string]dmclock.ClientInfo, m *dmmetrics.Metrics) {
	pull := dmclock.NewPullScheduler(core)

	for id := range clients {
		wg.Add(1)
		go produce(ctx, wg, id, func(request string) {
			_ = pull.AddRequest(id, request, dmclock.ReqParams{}, nil, nil)
			m.SetQueueDepth(id, core.QueueLen(id))
		})
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			result := pull.PullRequest(nil)
			switch result.Kind {
			case dmclock.PullReady:
				log.WithFields(log.Fields{"client": result.Client, "request": result.Request, "phase": result.Phase}).Info("dmclockbench: dispatched")
			case dmclock.PullFuture:
				d := time.Duration(float64(result.At-core.Now()) * float64(time.Second))
				if d < 0 {
					d = 0
				}
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return
				}
			case dmclock.PullNone:
				select {
				case <-time.After(10 * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// runPush drives the push façade: a fixed-size in-flight budget stands in
// for real downstream capacity, so CanHandleFunc reports true only while
// budget remains.
func runPush(ctx context.Context, wg *sync.WaitGroup, core *dmclock.Scheduler[string, string], clients map[string]dmclock.ClientInfo, m *dmmetrics.Metrics) {
	const inFlightBudget = 8
	var inFlightMu sync.Mutex
	inFlight := 0

	var push *dmclock.PushScheduler[string, string]
	push = dmclock.NewPushScheduler[string, string](core, func() bool {
		inFlightMu.Lock()
		defer inFlightMu.Unlock()
		return inFlight < inFlightBudget
	}, func(client string, request string, phase dmclock.Phase) {
		inFlightMu.Lock()
		inFlight++
		inFlightMu.Unlock()
		log.WithFields(log.Fields{"client": client, "request": request, "phase": phase}).Info("dmclockbench: dispatched")
		go func() {
			time.Sleep(time.Duration(5+rand.Intn(20)) * time.Millisecond)
			inFlightMu.Lock()
			inFlight--
			inFlightMu.Unlock()
			push.RequestCompleted()
		}()
	}, log.WithField("component", "push"))

	go func() {
		<-ctx.Done()
		push.Close()
	}()

	for id := range clients {
		wg.Add(1)
		go produce(ctx, wg, id, func(request string) {
			_ = push.AddRequest(id, request, dmclock.ReqParams{}, nil, 0)
			m.SetQueueDepth(id, core.QueueLen(id))
		})
	}
}

// produce enqueues a freshly minted request id for client at a jittered
// interval until ctx is done.
func produce(ctx context.Context, wg *sync.WaitGroup, client string, enqueue func(request string)) {
	defer wg.Done()
	for {
		d := time.Duration(20+rand.Intn(80)) * time.Millisecond
		select {
		case <-time.After(d):
			enqueue(uuid.NewString())
		case <-ctx.Done():
			return
		}
	}
}
