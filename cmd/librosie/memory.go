package main

/*
#include <stdlib.h>
#include <string.h>
#include "rosie.h"

static str **new_items(uint32_t n) {
	return (str **)calloc(n == 0 ? 1 : n, sizeof(str *));
}

static str *new_str(const void *data, uint32_t len) {
	str *s = (str *)malloc(sizeof(str));
	if (s == NULL) {
		return NULL;
	}
	s->ptr = (uint8_t *)malloc((size_t)len + 1);
	if (s->ptr == NULL) {
		free(s);
		return NULL;
	}
	if (len > 0) {
		memcpy(s->ptr, data, len);
	}
	s->ptr[len] = 0;
	s->len = len;
	return s;
}

static void set_item(str **items, uint32_t i, str *s) {
	items[i] = s;
}

static void free_items(str **items, uint32_t n) {
	for (uint32_t i = 0; i < n; i++) {
		if (items[i] != NULL) {
			free(items[i]->ptr);
			free(items[i]);
		}
	}
	free(items);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/roach88/rosie/internal/abi"
)

// issued maps the items pointer of every C array handed out to the runtime
// array it copies. A pointer leaves the map exactly once, so no C array is
// freed twice.
var (
	mu     sync.Mutex
	issued = map[uintptr]issuedArray{}
)

type issuedArray struct {
	arr *abi.Array
	n   uint32
}

var errOutOfMemory = errors.New("out of memory")

// buffer copies a caller string into Go memory. A NULL string reads as empty.
func buffer(s *C.str) abi.Buffer {
	if s == nil || s.ptr == nil || s.len == 0 {
		return abi.NewBuffer("")
	}
	return abi.CopyBuffer(unsafe.Slice((*byte)(unsafe.Pointer(s.ptr)), int(s.len)))
}

// export copies arr into C memory and records it as issued. When the copy
// cannot be made the runtime array is released and an empty array returned.
func export(arr *abi.Array) C.stringArray {
	n := arr.Len()
	count, err := descriptorLen(n)
	if err != nil {
		return exportFailed(arr, fmt.Errorf("item count %w", err))
	}
	items := C.new_items(C.uint32_t(count))
	if items == nil {
		return exportFailed(arr, errOutOfMemory)
	}
	for i := 0; i < n; i++ {
		b, err := arr.At(i)
		if err != nil {
			C.free_items(items, C.uint32_t(count))
			return exportFailed(arr, err)
		}
		data := b.Bytes()
		var p unsafe.Pointer
		if len(data) > 0 {
			p = unsafe.Pointer(&data[0])
		}
		size, err := descriptorLen(len(data))
		if err != nil {
			C.free_items(items, C.uint32_t(count))
			return exportFailed(arr, fmt.Errorf("item %d length %w", i, err))
		}
		s := C.new_str(p, C.uint32_t(size))
		if s == nil {
			C.free_items(items, C.uint32_t(count))
			return exportFailed(arr, errOutOfMemory)
		}
		C.set_item(items, C.uint32_t(i), s)
	}

	mu.Lock()
	issued[uintptr(unsafe.Pointer(items))] = issuedArray{arr: arr, n: count}
	mu.Unlock()

	return C.stringArray{n: C.uint32_t(count), ptr: items}
}

func exportFailed(arr *abi.Array, err error) C.stringArray {
	logger.Error("cannot export result array", "items", arr.Len(), "error", err)
	_ = rt().Free(arr)
	return C.stringArray{}
}

func release(a C.stringArray) int {
	if a.ptr == nil {
		return 0
	}
	key := uintptr(unsafe.Pointer(a.ptr))

	mu.Lock()
	ia, ok := issued[key]
	delete(issued, key)
	mu.Unlock()

	if !ok {
		logger.Warn("rejected free of unknown string array", "items", uint32(a.n))
		return -1
	}
	C.free_items(a.ptr, C.uint32_t(ia.n))
	if err := rt().Free(ia.arr); err != nil {
		return -1
	}
	return 0
}

