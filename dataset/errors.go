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

package dataset

import "errors"

// Error kinds shared across the dataset, manager, and updater packages.
// Every operation in this module reports failure through one of these,
// wrapped with context via fmt.Errorf("...: %w", ...); callers compare
// with errors.Is.
var (
	ErrParse          = errors.New("dataset: malformed TLV data")
	ErrInvalidArgs    = errors.New("dataset: invalid arguments")
	ErrNoBufs         = errors.New("dataset: insufficient buffer capacity")
	ErrNotFound       = errors.New("dataset: not found")
	ErrBusy           = errors.New("dataset: operation already in progress")
	ErrAlready        = errors.New("dataset: requested change already in effect")
	ErrInvalidState   = errors.New("dataset: invalid state for this operation")
	ErrRejected       = errors.New("dataset: rejected by leader")
	ErrNotImplemented = errors.New("dataset: not implemented")
)
