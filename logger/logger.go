package logger

import (
	"fmt"
	"io"
	"sync"
)

type Logger struct {
	Prints chan string

	teeLock sync.Mutex
	tee     io.Writer
}

func Init() *Logger {
	return &Logger{Prints: make(chan string, 100)}
}

// SetTee mirrors every message to w. Used in headless mode, where no
// log page drains the Prints channel.
func (l *Logger) SetTee(w io.Writer) {
	l.teeLock.Lock()
	defer l.teeLock.Unlock()
	l.tee = w
}

func (l *Logger) Print(s string) {
	l.teeLock.Lock()
	if l.tee != nil {
		fmt.Fprintln(l.tee, s)
	}
	l.teeLock.Unlock()

	// Drop instead of blocking the caller when nothing drains us.
	select {
	case l.Prints <- s:
	default:
	}
}

func (l *Logger) Printf(s string, as ...interface{}) {
	l.Print(fmt.Sprintf(s, as...))
}

func (l *Logger) PrintError(source string, err error) {
	l.Printf("Error(%s) -> %s", source, err.Error())
}
