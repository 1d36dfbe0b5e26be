package mecs

import (
	"reflect"
	"sync"
)

// handlerMeta holds metadata and pool for a registered handler type.
type handlerMeta struct {
	meta   *SystemMeta
	bundle *Bundle
	events map[reflect.Type]int
}

// registerHandler analyzes a handler and indexes its event methods.
// Any exported method taking exactly one argument listens for events of
// that argument's type.
func (m *Manager) registerHandler(h any, bundle *Bundle) error {
	t := reflect.TypeOf(h)

	meta, err := analyzeSystem(t, bundle)
	if err != nil {
		return err
	}

	elem := t
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	meta.Pool = &sync.Pool{
		New: func() any {
			return reflect.New(elem).Interface()
		},
	}

	ptrType := reflect.PointerTo(elem)
	events := make(map[reflect.Type]int)
	for i := 0; i < ptrType.NumMethod(); i++ {
		method := ptrType.Method(i)
		if method.Type.NumIn() != 2 {
			continue
		}
		events[method.Type.In(1)] = i
	}

	m.handlers = append(m.handlers, &handlerMeta{
		meta:   meta,
		bundle: bundle,
		events: events,
	})
	return nil
}

// Dispatch dispatches an event to all registered handlers that listen for it.
// Handlers listen for events by implementing a method with the signature:
//
//	func (h *MyHandler) HandleMyEvent(event *MyEventType)
//
// The method name does not matter, only the signature (one argument).
// Dispatch runs synchronously; handlers see *world.Tx as nil.
func (m *Machine) Dispatch(event any) {
	if m.manager == nil || m.closed.Load() {
		return
	}

	eventType := reflect.TypeOf(event)

	for _, hm := range m.manager.handlers {
		methodIdx, ok := hm.events[eventType]
		if !ok {
			continue
		}
		if !m.canRun(hm.meta) {
			continue
		}

		handler := hm.meta.Pool.Get()
		if injectSystem(handler, m, nil, hm.meta, m.manager) {
			reflect.ValueOf(handler).Method(methodIdx).Call([]reflect.Value{reflect.ValueOf(event)})
		}
		zeroSystem(handler, hm.meta)
		hm.meta.Pool.Put(handler)
	}
}
