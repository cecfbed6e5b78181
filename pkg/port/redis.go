package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/redcon"
)

const RedisOk = "OK"

var address = flag.String("address", ":6380", "The ip:port to listen on for Redis protocol.")

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string // Upper-cased command name.
	args    []string
}

// redisOutput conforms to a real Redis server output on non pub / sub commands.
type redisOutput struct {
	closeConnection bool     // Closes the connection if true.
	writeNil        bool     // Writes a nil value if true.
	err             *string  // Error to return if set.
	writeInt        *int     // Writes an integer value if set.
	writeBulk       []byte   // Writes a bulk string if non-nil.
	writeArray      []string // Writes an array of bulk strings if non-nil.
	writeString     string   // Writes a simple string otherwise.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{writeString: msg, closeConnection: true}
}

func writeRedisNil() redisOutput {
	return redisOutput{writeNil: true}
}

func writeRedisInt(i int) redisOutput {
	return redisOutput{writeInt: &i}
}

func writeRedisString(s string) redisOutput {
	return redisOutput{writeString: s}
}

func writeRedisBulk(b []byte) redisOutput {
	if b == nil {
		b = []byte{}
	}
	return redisOutput{writeBulk: b}
}

func writeRedisArray(items []string) redisOutput {
	if items == nil {
		items = []string{}
	}
	return redisOutput{writeArray: items}
}

func writeRedisError(err error) redisOutput {
	msg := "ERR " + err.Error()
	return redisOutput{err: &msg}
}

func wrongArgCount(command string) redisOutput {
	return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(command)))
}

// redisWriter is the part of redcon.Conn used to write replies.
type redisWriter interface {
	WriteError(msg string)
	WriteString(str string)
	WriteBulk(bulk []byte)
	WriteBulkString(bulk string)
	WriteInt(num int)
	WriteArray(count int)
	WriteNull()
	Close() error
}

var _ redisWriter = (redcon.Conn)(nil)

// write sends the output to the client.
func (ro redisOutput) write(conn redisWriter) {
	switch {
	case ro.closeConnection:
		conn.WriteString(ro.writeString)
		if err := conn.Close(); err != nil {
			slog.Error("Failed to close connection.", "error", err)
		}
	case ro.err != nil:
		conn.WriteError(*ro.err)
	case ro.writeNil:
		conn.WriteNull()
	case ro.writeInt != nil:
		conn.WriteInt(*ro.writeInt)
	case ro.writeBulk != nil:
		conn.WriteBulk(ro.writeBulk)
	case ro.writeArray != nil:
		conn.WriteArray(len(ro.writeArray))
		for _, item := range ro.writeArray {
			conn.WriteBulkString(item)
		}
	default:
		conn.WriteString(ro.writeString)
	}
}

type redisHandler struct {
	backend *CacheBackend
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(backend *CacheBackend) (*redisHandler, error) {
	if backend == nil {
		return nil, errors.New("expected a non-nil backend")
	}
	return &redisHandler{backend: backend}, nil
}

// parseSetCommand parses `SET key value [NX | XX] [GET] [EX seconds | PX milliseconds | KEEPTTL]`.
func parseSetCommand(args []string) (SetCommand, error) {
	if len(args) < 2 {
		return SetCommand{}, errors.New("wrong number of arguments for 'set' command")
	}
	cmd := SetCommand{key: args[0], value: []byte(args[1])}
	for i := 2; i < len(args); i++ {
		switch option := strings.ToUpper(args[i]); option {
		case "NX", "XX":
			if cmd.existence != noCheck {
				return SetCommand{}, errors.New("syntax error")
			}
			cmd.existence = ifNotExists
			if option == "XX" {
				cmd.existence = ifExists
			}
		case "GET":
			cmd.get = true
		case "KEEPTTL":
			if cmd.hasTtl {
				return SetCommand{}, errors.New("syntax error")
			}
			cmd.keepTtl = true
		case "EX", "PX":
			if cmd.hasTtl || cmd.keepTtl || i+1 >= len(args) {
				return SetCommand{}, errors.New("syntax error")
			}
			i++
			amount, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				return SetCommand{}, errors.New("value is not an integer or out of range")
			}
			if amount <= 0 {
				return SetCommand{}, errors.New("invalid expire time in 'set' command")
			}
			unit := time.Second
			if option == "PX" {
				unit = time.Millisecond
			}
			cmd.ttl, cmd.hasTtl = time.Duration(amount)*unit, true
		default:
			return SetCommand{}, errors.New("syntax error")
		}
	}
	return cmd, nil
}

func (rh *redisHandler) handle(cmd redisCommand) redisOutput {
	switch cmd.command {
	case "PING":
		if len(cmd.args) == 1 {
			return writeRedisBulk([]byte(cmd.args[0]))
		}
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection(RedisOk)
	case "SET":
		setCmd, err := parseSetCommand(cmd.args)
		if err != nil {
			return writeRedisError(err)
		}
		result := rh.backend.Set(setCmd)
		if result.err != nil {
			return writeRedisError(result.err)
		}
		if setCmd.get {
			if !result.hasPreviousValue {
				return writeRedisNil()
			}
			return writeRedisBulk(result.previousValue)
		}
		if !result.couldSet {
			return writeRedisNil()
		}
		return writeRedisString(RedisOk)
	case "GET":
		if len(cmd.args) != 1 {
			return wrongArgCount(cmd.command)
		}
		if value, err := rh.backend.Get(cmd.args[0]); errors.Is(err, ErrKeyNotFound) {
			return writeRedisNil()
		} else if err != nil {
			return writeRedisError(err)
		} else {
			return writeRedisBulk(value)
		}
	case "DEL":
		if len(cmd.args) < 1 {
			return wrongArgCount(cmd.command)
		}
		deletedCount := 0
		for _, key := range cmd.args {
			if rh.backend.Delete(key) {
				deletedCount++
			}
		}
		return writeRedisInt(deletedCount)
	case "EXISTS":
		if len(cmd.args) < 1 {
			return wrongArgCount(cmd.command)
		}
		existing := 0
		for _, key := range cmd.args {
			if rh.backend.Exists(key) {
				existing++
			}
		}
		return writeRedisInt(existing)
	case "TTL", "PTTL":
		if len(cmd.args) != 1 {
			return wrongArgCount(cmd.command)
		}
		remaining, err := rh.backend.TTL(cmd.args[0])
		if errors.Is(err, ErrKeyNotFound) {
			return writeRedisInt(-2) // Redis replies -2 for missing keys.
		} else if err != nil {
			return writeRedisError(err)
		}
		if cmd.command == "PTTL" {
			return writeRedisInt(int(remaining.Milliseconds()))
		}
		return writeRedisInt(int(remaining.Round(time.Second) / time.Second))
	case "KEYS":
		if len(cmd.args) != 1 {
			return wrongArgCount(cmd.command)
		}
		keys, err := rh.backend.Keys(cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisArray(keys)
	case "DBSIZE":
		return writeRedisInt(rh.backend.Size())
	case "FLUSHDB", "FLUSHALL":
		rh.backend.Flush()
		return writeRedisString(RedisOk)
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", strings.ToLower(cmd.command)))
	}
}

// RunRedisServer starts a Redis protocol server on top of the given backend. It blocks until `ctx` is done or the
// server fails; the backend is closed on the way out.
func RunRedisServer(ctx context.Context, backend *CacheBackend) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}

	redisHandler, err := newRedisHandler(backend)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, *address,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to redisCommand.
			command := redisCommand{command: strings.ToUpper(string(cmd.Args[0])), args: make([]string, len(cmd.Args)-1)}
			for i := 1; i < len(cmd.Args); i++ {
				command.args[i-1] = string(cmd.Args[i])
			}
			redisHandler.handle(command).write(conn)
		},
		/*accept*/ func(conn redcon.Conn) bool {
			slog.Debug("Accepted redis connection.", "remote", conn.RemoteAddr())
			return true // Accept all connections.
		},
		/*close*/ func(conn redcon.Conn, err error) {
			if err != nil {
				slog.Debug("Redis connection closed with error.", "remote", conn.RemoteAddr(), "error", err)
			}
		})

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := redisServer.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()
	slog.Info("Redis server is listening.", "address", *address)

	return awaitRedisServer(ctx, redisServer.Close, backend, serverErrSignal)
}

// awaitRedisServer blocks until `ctx` is done or the server exits, then releases the server and the backend.
// A server exit without an error is still unexpected while `ctx` is live.
func awaitRedisServer(ctx context.Context, closeServer func() error, backend *CacheBackend,
	serverErrSignal <-chan error) error {
	select {
	case <-ctx.Done():
		serverErr := closeServer()
		backendErr := backend.Close()
		if exitErr := errors.Join(serverErr, backendErr); exitErr != nil {
			return fmt.Errorf("failed to close ttlcache: %w", exitErr)
		}
		return nil // Exited with no errors.
	case err, ok := <-serverErrSignal:
		_ = backend.Close()
		if !ok {
			return errors.New("redis server stopped unexpectedly")
		}
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}
}
