package core

import (
	"context"
	"errors"

	"github.com/rzpsarthak13/redis-deque/pkg/future"
)

// ErrExecutorClosed is returned when a command is dispatched after Close.
var ErrExecutorClosed = errors.New("command executor is closed")

// Command names understood by every CommandExecutor implementation.
// Argument order is fixed per command and documented next to each name.
const (
	CommandLPush      = "LPUSH"      // key, value
	CommandRPush      = "RPUSH"      // key, value
	CommandLPop       = "LPOP"       // key
	CommandRPop       = "RPOP"       // key
	CommandBLPop      = "BLPOP"      // key..., timeoutSeconds
	CommandBRPop      = "BRPOP"      // key..., timeoutSeconds
	CommandBRPopLPush = "BRPOPLPUSH" // source, destination, timeoutSeconds
	CommandRPopLPush  = "RPOPLPUSH"  // source, destination
	CommandLLen       = "LLEN"       // key
	CommandLIndex     = "LINDEX"     // key, index
	CommandLRange     = "LRANGE"     // key, start, stop
	CommandLRem       = "LREM"       // key, count, value
	CommandDel        = "DEL"        // key
)

// CommandExecutor dispatches commands against the remote ordered-list store.
//
// Every call returns immediately with a future resolved on another goroutine.
// A single command and a single script are each atomic on the store. The
// dispatch is detached from ctx cancellation: cancelling ctx never aborts a
// command that was already issued, it only stops callers that wait on it.
type CommandExecutor interface {
	// Execute dispatches one command. key is the routing key.
	Execute(ctx context.Context, key string, name string, args ...any) *future.Future[Reply]

	// ExecuteScript dispatches one atomic scripted sequence over keys.
	ExecuteScript(ctx context.Context, key string, script Script, keys []string, args ...any) *future.Future[Reply]

	// Close releases the connection resources.
	Close() error
}

// Command is a command descriptor: the command name and the decoder for its reply.
type Command[T any] struct {
	Name   string
	Decode func(Reply) (T, error)
}

// Write dispatches cmd through executor and decodes its reply.
func Write[T any](ctx context.Context, executor CommandExecutor, key string, cmd Command[T], args ...any) *future.Future[T] {
	return future.Then(executor.Execute(ctx, key, cmd.Name, args...), cmd.Decode)
}

// Eval dispatches script through executor and decodes its reply.
func Eval[T any](ctx context.Context, executor CommandExecutor, key string, script Script, decode func(Reply) (T, error), keys []string, args ...any) *future.Future[T] {
	return future.Then(executor.ExecuteScript(ctx, key, script, keys, args...), decode)
}
