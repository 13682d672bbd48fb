// Command librosie builds the matching engine as a C shared library:
//
//	go build -buildmode=c-shared -o librosie.so ./cmd/librosie
//
// Every result is a stringArray whose strings are allocated with malloc.
// Callers return arrays with rosie_free_string_array and never free the
// pieces themselves. Arrays the library did not issue, or has already
// taken back, are rejected and logged rather than freed.
//
// Logging and the optional call journal follow the ROSIE_* environment
// variables, and ROSIE_CONFIG names a settings file.
package main

/*
#include "rosie.h"
*/
import "C"

import (
	"log/slog"
	"os"
	"sync"

	"github.com/roach88/rosie/internal/abi"
	"github.com/roach88/rosie/internal/api"
	"github.com/roach88/rosie/internal/handle"
	"github.com/roach88/rosie/internal/journal"
	"github.com/roach88/rosie/internal/settings"
)

var (
	setupOnce sync.Once
	runtime   *api.Runtime
	logger    = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
)

// main is required for -buildmode=c-shared.
func main() {}

func setup() {
	s, err := settings.Load(settings.New(), os.Getenv("ROSIE_CONFIG"))
	if err != nil {
		logger.Warn("settings ignored", "error", err)
		runtime = api.New(api.WithLogger(logger))
		return
	}
	if l, err := s.NewLogger(os.Stderr); err == nil {
		logger = l
	}

	opts := []api.Option{api.WithLogger(logger)}
	if s.Journal != "" {
		j, err := journal.Open(s.Journal)
		if err != nil {
			logger.Error("journal unavailable", "path", s.Journal, "error", err)
		} else {
			opts = append(opts, api.WithJournal(j))
		}
	}
	runtime = api.New(opts...)
}

func rt() *api.Runtime {
	setupOnce.Do(setup)
	return runtime
}

//export rosie_new
func rosie_new(home *C.str, messages *C.stringArray) C.uint64_t {
	h, arr := rt().Initialize(buffer(home))
	out := export(arr)
	if messages != nil {
		*messages = out
	} else {
		release(out)
	}
	return C.uint64_t(h)
}

//export rosie_configure
func rosie_configure(engine C.uint64_t, cfg *C.str) C.stringArray {
	return export(rt().Configure(handle.Handle(engine), buffer(cfg)))
}

//export rosie_inspect
func rosie_inspect(engine C.uint64_t) C.stringArray {
	return export(rt().Inspect(handle.Handle(engine)))
}

//export rosie_load_manifest
func rosie_load_manifest(engine C.uint64_t, ref *C.str) C.stringArray {
	return export(rt().LoadManifest(handle.Handle(engine), buffer(ref)))
}

//export rosie_match
func rosie_match(engine C.uint64_t, input *C.str, extra *C.str) C.stringArray {
	var start *abi.Buffer
	if extra != nil {
		b := buffer(extra)
		start = &b
	}
	return export(rt().Match(handle.Handle(engine), buffer(input), start))
}

// rosie_free_string_array returns 0 when a was released and -1 when it was
// not an outstanding array of this library.
//
//export rosie_free_string_array
func rosie_free_string_array(a C.stringArray) C.int {
	return C.int(release(a))
}

// rosie_finalize returns 0 when the engine was destroyed and -1 when the
// handle was already stale.
//
//export rosie_finalize
func rosie_finalize(engine C.uint64_t) C.int {
	if err := rt().Finalize(handle.Handle(engine)); err != nil {
		return -1
	}
	return 0
}
