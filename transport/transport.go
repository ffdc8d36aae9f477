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

// Package transport declares the CoAP/TMF surface the dataset manager
// uses (spec.md §6.1), as an interface: actual CoAP framing, DTLS, and
// mesh addressing are an explicit Non-goal. An in-memory fake
// implementation lives alongside it for tests.
package transport

import "context"

// URI is one of the five MeshCoP dataset CoAP resource paths.
type URI string

const (
	URIActiveGet     URI = "/c/ag"
	URIActiveSet     URI = "/c/as"
	URIActiveReplace URI = "/c/ar"
	URIPendingGet    URI = "/c/pg"
	URIPendingSet    URI = "/c/ps"
)

// Request is a decoded incoming MGMT request.
type Request struct {
	URI URI
	// Payload is the raw TLV bytes: a Dataset's worth of TLVs for
	// Set/Replace, or a Get-TLV's list of requested types for Get.
	Payload []byte
	// HasCommissionerSession and CommissionerSessionID describe the
	// presence and value of the CommissionerSessionId TLV in the
	// incoming payload, already parsed out by the server for
	// convenience (spec.md §4.4.3 step 3).
	HasCommissionerSession bool
	CommissionerSessionID  uint16
	// FromCommissioner is true when the request originated from an
	// active external commissioner session rather than from a Thread
	// device relaying on its behalf.
	FromCommissioner bool
}

// Response is what a Handler returns for a given Request.
type Response struct {
	// State is set for Set/Replace responses: dataset.StateAccept,
	// dataset.StateReject, or dataset.StatePending. Ignored for Get.
	State uint8
	// Payload carries the selected TLVs for a Get response. Ignored
	// for Set/Replace.
	Payload []byte
}

// Handler processes one incoming Request and produces a Response.
type Handler func(ctx context.Context, req Request) Response

// Server lets the dataset manager register handlers for the URIs it
// owns.
type Server interface {
	Handle(uri URI, h Handler)
}

// Client lets the dataset manager send an outbound Confirmable POST
// (MGMT_SET-to-leader, or a commissioner-originated Get) and wait for
// the response.
type Client interface {
	Post(ctx context.Context, uri URI, req Request) (Response, error)
}
