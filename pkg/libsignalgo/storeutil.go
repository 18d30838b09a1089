// avra - end-to-end encrypted messaging between autonomous agents.
// Copyright (C) 2025 Avra Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package libsignalgo

import (
	"context"
	"unsafe"

	gopointer "github.com/mattn/go-pointer"
)

// Return codes shared by all store callback trampolines. A Go error from the
// store is recorded on the CallbackContext and reported as callbackError so
// the original error can be recovered once the native call returns. A fault
// (a panic, or a store context that does not resolve to the expected store
// type) is reported as callbackFault without touching any Go state.
const (
	callbackSuccess = 0
	callbackFault   = 1
	callbackError   = -1
)

// CallbackContext carries a context.Context into store callbacks and carries
// errors back out of them. It also owns the store handles registered for a
// native call, which must be released with Unref once the call has returned.
type CallbackContext struct {
	Error error
	Ctx   context.Context

	unrefs []unsafe.Pointer
}

func NewEmptyCallbackContext() *CallbackContext {
	return NewCallbackContext(context.TODO())
}

func NewCallbackContext(ctx context.Context) *CallbackContext {
	return &CallbackContext{Ctx: ctx}
}

// Unref releases all store handles registered on this context.
func (ctx *CallbackContext) Unref() {
	for _, ptr := range ctx.unrefs {
		gopointer.Unref(ptr)
	}
	ctx.unrefs = nil
}

type storeContext[T any] struct {
	store       T
	callbackCtx *CallbackContext
}

func saveStorePointer[T any](ctx *CallbackContext, store T) unsafe.Pointer {
	ptr := gopointer.Save(&storeContext[T]{store: store, callbackCtx: ctx})
	ctx.unrefs = append(ctx.unrefs, ptr)
	return ptr
}

// runStoreCallback resolves storeCtx back to the store registered for the
// current native call and runs callback against it. A failure on the Go side
// must never cross the FFI boundary as a panic: anything that prevents the
// callback from reaching the store is reported as callbackFault.
func runStoreCallback[T any](storeCtx unsafe.Pointer, callback func(store T, ctx context.Context) error) (code int) {
	defer func() {
		if recover() != nil {
			code = callbackFault
		}
	}()
	wrapped, ok := gopointer.Restore(storeCtx).(*storeContext[T])
	if !ok {
		return callbackFault
	}
	if err := callback(wrapped.store, wrapped.callbackCtx.Ctx); err != nil {
		wrapped.callbackCtx.Error = err
		return callbackError
	}
	return callbackSuccess
}

// runStoreValueCallback is runStoreCallback for the identity store callbacks
// whose non-negative return value is meaningful to libsignal (saved vs
// replaced, trusted vs untrusted). Faults map to callbackError here because
// a positive code would be read as a result.
func runStoreValueCallback[T any](storeCtx unsafe.Pointer, callback func(store T, ctx context.Context) (int, error)) (code int) {
	defer func() {
		if recover() != nil {
			code = callbackError
		}
	}()
	wrapped, ok := gopointer.Restore(storeCtx).(*storeContext[T])
	if !ok {
		return callbackError
	}
	value, err := callback(wrapped.store, wrapped.callbackCtx.Ctx)
	if err != nil {
		wrapped.callbackCtx.Error = err
		return callbackError
	}
	return value
}
