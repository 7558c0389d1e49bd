// SPDX-License-Identifier: MIT

// Package all pulls in every hardening hook implementation via blank
// import, mirroring the teacher's activator/all and detector/all
// aggregator packages.
package all

import (
	_ "github.com/unitd-project/unitd/hardening/linux" // Pdeathsig-based best-effort isolation
)
