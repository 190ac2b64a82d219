/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package status

import (
	"bytes"
	"fmt"
	"sort"
)

type Campaign struct {
	Phase        string         `json:"phase"`
	Run          uint64         `json:"run"`
	Finalized    bool           `json:"finalized"`
	MutantIndex  int            `json:"mutant_index"`
	MutantCount  int            `json:"mutant_count"`
	ActiveMutant *Mutant        `json:"active_mutant,omitempty"`
	Timeout      Timeout        `json:"timeout"`
	Outcomes     map[string]int `json:"outcomes"`
	Exit         *Exit          `json:"exit,omitempty"`
}

type Mutant struct {
	ID           int64  `json:"id"`
	Kind         string `json:"kind"`
	Target       uint64 `json:"target"`
	TriggerCount uint64 `json:"trigger_count"`
	Mask         uint64 `json:"mask"`
}

type Timeout struct {
	Factor       float64 `json:"factor"`
	ExtraMicros  uint64  `json:"extra_us"`
	Calibrated   bool    `json:"calibrated"`
	BudgetMicros uint64  `json:"budget_us"`
	Deadline     uint64  `json:"deadline_us"`
	Armed        bool    `json:"armed"`
}

type Exit struct {
	Status int    `json:"status"`
	Err    string `json:"error,omitempty"`
}

// progressWidth is the number of cells of the progress bar.
const progressWidth = 50

func (s *Campaign) Pretty() string {
	var buffer bytes.Buffer
	buffer.WriteString("===========================================\n")
	buffer.WriteString(fmt.Sprintf("Phase=%s, Run=%d, Finalized=%t\n", s.Phase, s.Run, s.Finalized))
	buffer.WriteString("===========================================\n\n")

	buffer.WriteString("=== Timeout ===\n")
	buffer.WriteString(fmt.Sprintf("Factor=%g Extra=%dus\n", s.Timeout.Factor, s.Timeout.ExtraMicros))
	if s.Timeout.Calibrated {
		buffer.WriteString(fmt.Sprintf("Budget=%dus\n", s.Timeout.BudgetMicros))
	} else {
		buffer.WriteString("Budget not calibrated\n")
	}
	if s.Timeout.Armed {
		buffer.WriteString(fmt.Sprintf("Armed until %dus\n", s.Timeout.Deadline))
	}
	buffer.WriteString("\n")

	buffer.WriteString("=== Mutants ===\n")
	done := s.MutantIndex
	if done < 0 {
		done = 0
	}
	if done > s.MutantCount {
		done = s.MutantCount
	}
	filled := 0
	if s.MutantCount > 0 {
		filled = done * progressWidth / s.MutantCount
	}
	buffer.WriteString("|")
	for i := 0; i < progressWidth; i++ {
		if i < filled {
			buffer.WriteString("#")
		} else {
			buffer.WriteString(" ")
		}
	}
	buffer.WriteString(fmt.Sprintf("| %d/%d\n", done, s.MutantCount))

	if m := s.ActiveMutant; m != nil {
		buffer.WriteString(fmt.Sprintf("Active: id=%d kind=%s target=%#x trigger=%d mask=%#x\n", m.ID, m.Kind, m.Target, m.TriggerCount, m.Mask))
	}
	buffer.WriteString("\n")

	buffer.WriteString("=== Outcomes ===\n")
	names := make([]string, 0, len(s.Outcomes))
	for name := range s.Outcomes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		buffer.WriteString(fmt.Sprintf("%22s: %d\n", name, s.Outcomes[name]))
	}

	if s.Exit != nil {
		buffer.WriteString("\n")
		if s.Exit.Err != "" {
			buffer.WriteString(fmt.Sprintf("Exited with status %d: %s\n", s.Exit.Status, s.Exit.Err))
		} else {
			buffer.WriteString(fmt.Sprintf("Exited with status %d\n", s.Exit.Status))
		}
	}

	return buffer.String()
}
