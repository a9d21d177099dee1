package auditlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbox/internal/logging"
)

// TimeFormat is the ISO-8601 UTC layout with millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z"

const defaultQueueSize = 256

// Options configures an Interceptor.
type Options struct {
	App       string           // application name prefix
	Path      string           // log file, opened in append mode
	Console   io.Writer        // real console, defaults to os.Stdout
	QueueSize int              // pending appends before overflow goroutines kick in
	Clock     func() time.Time // defaults to time.Now
	OnError   func(error)      // append failure handler, defaults to logger.Fatal
	Logger    *logging.Logger
	Metrics   *monitoring.Metrics
}

// Interceptor is the sandbox's logging entry point. It is safe for concurrent use.
type Interceptor struct {
	app     string
	path    string
	console io.Writer
	clock   func() time.Time
	onError func(error)
	metrics *monitoring.Metrics

	consoleMu sync.Mutex

	file     *os.File
	queue    chan []byte
	done     chan struct{}
	overflow sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New opens the log file and starts the append writer.
func New(opts Options) (*Interceptor, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("log file path is required")
	}

	file, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDefault()
	}

	i := &Interceptor{
		app:     opts.App,
		path:    opts.Path,
		console: opts.Console,
		clock:   opts.Clock,
		onError: opts.OnError,
		metrics: opts.Metrics,
		file:    file,
		done:    make(chan struct{}),
	}
	if i.console == nil {
		i.console = os.Stdout
	}
	if i.clock == nil {
		i.clock = time.Now
	}
	if i.onError == nil {
		i.onError = func(err error) {
			logger.Fatal("audit log append failed", zap.String("path", opts.Path), zap.Error(err))
		}
	}

	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	i.queue = make(chan []byte, size)

	go i.writeLoop()

	return i, nil
}

// App returns the application name used as line prefix.
func (i *Interceptor) App() string {
	return i.app
}

// Path returns the log file path.
func (i *Interceptor) Path() string {
	return i.path
}

// Log joins parts with a single space, prints the composed line to the
// console and schedules it for appending. It never waits for the append.
func (i *Interceptor) Log(parts ...string) {
	line := i.Format(strings.Join(parts, " "))

	i.consoleMu.Lock()
	fmt.Fprintln(i.console, line)
	i.consoleMu.Unlock()

	if i.metrics != nil {
		i.metrics.RecordLogLine()
	}

	i.enqueue([]byte(line + "\n"))
}

// Format composes "<app> <timestamp> <message>".
func (i *Interceptor) Format(message string) string {
	return fmt.Sprintf("%s %s %s", i.app, i.clock().UTC().Format(TimeFormat), message)
}

func (i *Interceptor) enqueue(line []byte) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return
	}

	select {
	case i.queue <- line:
	default:
		// Queue full: hand off so the caller never blocks. Lines sent this
		// way may land out of order.
		i.overflow.Add(1)
		go func() {
			defer i.overflow.Done()
			i.queue <- line
		}()
	}
}

func (i *Interceptor) writeLoop() {
	defer close(i.done)
	for line := range i.queue {
		if _, err := i.file.Write(line); err != nil {
			i.onError(fmt.Errorf("append to %s: %w", i.path, err))
		}
	}
}

// Close flushes pending appends and closes the log file. Lines logged after
// Close still reach the console but are not persisted.
func (i *Interceptor) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	i.mu.Unlock()

	i.overflow.Wait()
	close(i.queue)
	<-i.done

	return i.file.Close()
}
