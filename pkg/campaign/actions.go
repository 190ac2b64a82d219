/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package campaign

import (
	"container/list"

	"github.com/hyperledger-labs/fimut/pkg/catalog"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Action is a command of the campaign state machine to its environment.
type Action struct {
	Type isActionType
}

type isActionType interface {
	isActionType()
}

// ActionResetTarget requests the target to reset and start run Run.
// Mutant is the mutant active in the run, nil for the golden run.
type ActionResetTarget struct {
	Run    t.RunNumber
	Mutant *catalog.Mutant
}

// ActionArmTimeout arms a timer expiring After microseconds into run Run,
// at Deadline on the target's clock.
type ActionArmTimeout struct {
	Run      t.RunNumber
	After    t.Micros
	Deadline t.Micros
}

// ActionDisarmTimeout disarms the timer of run Run, if any is armed.
type ActionDisarmTimeout struct {
	Run t.RunNumber
}

// ActionTerminate ends the campaign. Err is nil unless Status is non-zero.
type ActionTerminate struct {
	Status int
	Err    error
}

func (*ActionResetTarget) isActionType()   {}
func (*ActionArmTimeout) isActionType()    {}
func (*ActionDisarmTimeout) isActionType() {}
func (*ActionTerminate) isActionType()     {}

// ActionList represents a list of Actions.
type ActionList struct {
	list *list.List
}

// Iterator returns an iterator over the actions in this list, starting from the beginning of the list.
func (al *ActionList) Iterator() *ActionListIterator {
	if al.list == nil {
		return &ActionListIterator{}
	}

	return &ActionListIterator{
		currentElement: al.list.Front(),
	}
}

// PushBack appends an action to the end of the list.
func (al *ActionList) PushBack(action *Action) *ActionList {
	if al.list == nil {
		al.list = list.New()
	}

	al.list.PushBack(action)
	return al
}

// PushBackList appends all actions in newActions to the end of the current ActionList.
func (al *ActionList) PushBackList(newActions *ActionList) *ActionList {
	if newActions.list != nil {
		if al.list == nil {
			al.list = list.New()
		}
		al.list.PushBackList(newActions.list)
	}

	return al
}

func (al *ActionList) Len() int {
	if al.list == nil {
		return 0
	}
	return al.list.Len()
}

func (al *ActionList) ResetTarget(run t.RunNumber, mutant *catalog.Mutant) *ActionList {
	return al.PushBack(&Action{
		Type: &ActionResetTarget{
			Run:    run,
			Mutant: mutant,
		},
	})
}

func (al *ActionList) ArmTimeout(run t.RunNumber, after, deadline t.Micros) *ActionList {
	return al.PushBack(&Action{
		Type: &ActionArmTimeout{
			Run:      run,
			After:    after,
			Deadline: deadline,
		},
	})
}

func (al *ActionList) DisarmTimeout(run t.RunNumber) *ActionList {
	return al.PushBack(&Action{
		Type: &ActionDisarmTimeout{
			Run: run,
		},
	})
}

func (al *ActionList) Terminate(status int, err error) *ActionList {
	return al.PushBack(&Action{
		Type: &ActionTerminate{
			Status: status,
			Err:    err,
		},
	})
}

// ActionListIterator iterates over the actions of an ActionList using its Next method.
type ActionListIterator struct {
	currentElement *list.Element
}

// Next returns the next Action until the end of the associated ActionList is encountered.
// Thereafter, it returns nil.
func (ali *ActionListIterator) Next() *Action {
	if ali.currentElement == nil {
		return nil
	}

	result := ali.currentElement.Value.(*Action)
	ali.currentElement = ali.currentElement.Next()

	return result
}
