package distqueue

import (
	"fmt"

	"github.com/hibiken/asynq"
)

// Server wraps an asynq server, grounded on the teacher's redis/server.go.
type Server struct {
	server *asynq.Server
}

// NewServer builds a worker server bound to addr with the given
// concurrency, consuming the default and low priority queues with
// strict priority, matching the teacher's Queues/StrictPriority setup.
func NewServer(addr, password string, db, concurrency int) *Server {
	redisOpt := asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			PriorityDefault: 6,
			PriorityLow:     3,
		},
		StrictPriority: true,
	})

	return &Server{server: srv}
}

// Run starts the server and blocks until it shuts down or mux
// processing fails, matching asynq.Server.Run's documented contract.
func (s *Server) Run(mux *asynq.ServeMux) error {
	if err := s.server.Run(mux); err != nil {
		return fmt.Errorf("distqueue: server: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight tasks to finish.
func (s *Server) Shutdown() {
	s.server.Shutdown()
}
