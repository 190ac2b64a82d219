/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package campaign

import (
	"container/list"

	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Event is an input of the campaign state machine. Time is the point in time,
// on the target's clock, at which the event occurred.
type Event struct {
	Time t.Micros
	Type isEventType
}

type isEventType interface {
	isEventType()
}

// EventStart starts the golden run.
type EventStart struct{}

// EventRunCompleted signals that the target finished run Run with outcome code Code.
type EventRunCompleted struct {
	Run  t.RunNumber
	Code uint32
}

// EventTick advances the clock. An armed deadline that passed expires.
type EventTick struct{}

// EventTimeoutExpired signals that a timer armed for run Run fired.
// Timers on the host clock deliver their expiry this way.
type EventTimeoutExpired struct {
	Run t.RunNumber
}

func (*EventStart) isEventType()          {}
func (*EventRunCompleted) isEventType()   {}
func (*EventTick) isEventType()           {}
func (*EventTimeoutExpired) isEventType() {}

// EventList represents a list of Events.
type EventList struct {
	list *list.List
}

// Iterator returns an iterator over the events in this list, starting from the beginning of the list.
func (el *EventList) Iterator() *EventListIterator {
	if el.list == nil {
		return &EventListIterator{}
	}

	return &EventListIterator{
		currentElement: el.list.Front(),
	}
}

// PushBack appends an event to the end of the list.
// Returns the EventList itself, for the convenience of chaining multiple calls to PushBack.
func (el *EventList) PushBack(event *Event) *EventList {
	if el.list == nil {
		el.list = list.New()
	}

	el.list.PushBack(event)
	return el
}

// PushBackList appends all events in newEvents to the end of the current EventList.
func (el *EventList) PushBackList(newEvents *EventList) *EventList {
	if newEvents.list != nil {
		if el.list == nil {
			el.list = list.New()
		}
		el.list.PushBackList(newEvents.list)
	}

	return el
}

// Len returns the number of events in the EventList.
func (el *EventList) Len() int {
	if el.list == nil {
		return 0
	}
	return el.list.Len()
}

func (el *EventList) Start(time t.Micros) *EventList {
	return el.PushBack(&Event{
		Time: time,
		Type: &EventStart{},
	})
}

func (el *EventList) RunCompleted(time t.Micros, run t.RunNumber, code uint32) *EventList {
	return el.PushBack(&Event{
		Time: time,
		Type: &EventRunCompleted{
			Run:  run,
			Code: code,
		},
	})
}

func (el *EventList) Tick(time t.Micros) *EventList {
	return el.PushBack(&Event{
		Time: time,
		Type: &EventTick{},
	})
}

func (el *EventList) TimeoutExpired(time t.Micros, run t.RunNumber) *EventList {
	return el.PushBack(&Event{
		Time: time,
		Type: &EventTimeoutExpired{
			Run: run,
		},
	})
}

// EventListIterator iterates over the events of an EventList using its Next method.
type EventListIterator struct {
	currentElement *list.Element
}

// Next returns the next Event until the end of the associated EventList is encountered.
// Thereafter, it returns nil.
func (eli *EventListIterator) Next() *Event {
	if eli.currentElement == nil {
		return nil
	}

	result := eli.currentElement.Value.(*Event)
	eli.currentElement = eli.currentElement.Next()

	return result
}
