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

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveMGMTExposedThroughHandler(t *testing.T) {
	m := New()
	m.ObserveMGMT("/c/as", "accept")
	m.ObserveMGMT("/c/as", "reject")
	m.IncSyncRetry()
	m.SetPendingDelayRemaining(1234)
	m.IncUpdaterConflict()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `meshcop_mgmt_requests_total{result="accept",uri="/c/as"} 1`)
	assert.Contains(t, body, `meshcop_mgmt_requests_total{result="reject",uri="/c/as"} 1`)
	assert.Contains(t, body, "meshcop_sync_retries_total 1")
	assert.Contains(t, body, "meshcop_pending_delay_remaining_ms 1234")
	assert.Contains(t, body, "meshcop_updater_conflicts_total 1")
}
