package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"
)

// ErrShutdownTimeout은 종료 작업이 타임아웃되었을 때 반환되는 에러입니다.
var ErrShutdownTimeout = errors.New("worker: shutdown timed out")

// Task는 Group이 실행하는 장기 실행 작업입니다.
// ctx가 취소되면 가능한 빨리 리턴해야 합니다.
type Task func(ctx context.Context) error

// Group은 작업마다 고루틴 하나를 띄우고, 첫 번째 에러가 발생하면
// 나머지 작업에 취소를 전파합니다.
type Group struct {
	logger log.Logger
	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group

	waitOnce sync.Once
	done     chan struct{}
	err      error
}

// NewGroup은 parent에서 파생된 컨텍스트로 새 그룹을 생성합니다.
func NewGroup(parent context.Context, logger log.Logger) *Group {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(parent)
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		eg:     eg,
		done:   make(chan struct{}),
	}
}

// Context는 작업들이 공유하는 컨텍스트를 반환합니다.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go는 name으로 식별되는 작업을 새 고루틴에서 시작합니다.
func (g *Group) Go(name string, task Task) {
	logger := log.With(g.logger, "task", name)
	g.eg.Go(func() error {
		level.Debug(logger).Log("msg", "task started")
		err := task(g.ctx)
		if err != nil {
			level.Error(logger).Log("msg", "task failed", "err", err)
			return err
		}
		level.Debug(logger).Log("msg", "task stopped")
		return nil
	})
}

// Wait는 모든 작업이 끝날 때까지 기다리고 첫 번째 에러를 반환합니다.
// 여러 번 호출해도 안전합니다.
func (g *Group) Wait() error {
	<-g.wait()
	return g.err
}

// Shutdown은 모든 작업을 취소하고, 지정된 타임아웃 안에 끝나기를 기다립니다.
func (g *Group) Shutdown(timeout time.Duration) error {
	level.Info(g.logger).Log("msg", "shutting down task group")
	g.cancel()

	select {
	case <-g.wait():
		level.Info(g.logger).Log("msg", "task group shutdown complete")
		return nil
	case <-time.After(timeout):
		level.Error(g.logger).Log("msg", "shutdown timed out", "timeout", timeout)
		return ErrShutdownTimeout
	}
}

func (g *Group) wait() <-chan struct{} {
	g.waitOnce.Do(func() {
		go func() {
			g.err = g.eg.Wait()
			g.cancel()
			close(g.done)
		}()
	})
	return g.done
}
