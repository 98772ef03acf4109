// Copyright 2026 The NexusCentral Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package installation

import "time"

// Installation is one machine's binding to a company, identified by the
// derived machine identity hash. Rows are never deleted, only deactivated.
type Installation struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	MachineID     string    `json:"machine_id"`
	Hostname      string    `json:"hostname"`
	IPAddress     string    `json:"ip_address"`
	AppVersion    string    `json:"app_version,omitempty"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}
