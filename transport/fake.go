/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/xid"
)

// Fake is an in-memory Server+Client pair that dispatches Post calls
// directly to a registered Handler, for use in tests and the
// single-process CLI. A Post to a URI with no registered handler fails
// with an error carrying a generated correlation id, purely for log
// correlation; it plays no protocol role.
type Fake struct {
	mu       sync.Mutex
	handlers map[URI]Handler
}

// NewFake returns an empty Fake transport.
func NewFake() *Fake {
	return &Fake{handlers: map[URI]Handler{}}
}

func (f *Fake) Handle(uri URI, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[uri] = h
}

func (f *Fake) Post(ctx context.Context, uri URI, req Request) (Response, error) {
	f.mu.Lock()
	h, ok := f.handlers[uri]
	f.mu.Unlock()
	if !ok {
		return Response{}, fmt.Errorf("transport: no handler registered for %s (correlation %s)", uri, xid.New())
	}
	return h(ctx, req), nil
}
