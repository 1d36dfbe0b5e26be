// Package mecs provides a Machine Entity Component System for Dragonfly servers.
//
// MECS drives tickable machine block entities (boilers, multiblock
// controllers, hatches) the way PECS drives players:
//   - Machine abstraction for a persistent block entity identity
//   - Component-based state per machine
//   - Declarative dependency injection via struct tags
//   - Ordered relations between machines (controller -> hatches)
//   - Tick-driven loops grouped by world, run inside world transactions
//   - NBT tag persistence and edge-triggered client sync
//
// # Quick Start
//
//	bundle := mecs.NewBundle("boilers").
//	    Machine("bronze_boiler", func(m *mecs.Machine) {
//	        mecs.Add(m, boiler.New(boiler.DefaultTiers[boiler.Bronze]))
//	    }).
//	    Loop(&boiler.Loop{}, 0, mecs.Default)
//
//	mngr := mecs.NewBuilder().
//	    Bundle(bundle.Build()).
//	    Logger(logger).
//	    Store(db).
//	    MustInit()
//
//	m, err := mngr.NewMachine("bronze_boiler", w, cube.Pos{0, 64, 0})
//
// # Systems
//
// Systems declare dependencies via struct tags:
//
//	type BoilerLoop struct {
//	    Machine *mecs.Machine
//	    Boiler  *Boiler      `mecs:"mut"`
//	    Tanks   *fluid.Tanks `mecs:"mut"`
//	    Fuels   *FuelTable   `mecs:"res,opt"`
//	    _       mecs.Without[Disabled]
//	}
//
// # Tag Reference
//
//	(none)         Required read-only component
//	mecs:"mut"     Required mutable component
//	mecs:"opt"     Optional (nil if missing)
//	mecs:"opt,mut" Optional mutable
//	mecs:"rel"     Relation traversal
//	mecs:"res"     Manager resource
//	mecs:"res,mut" Mutable resource
//	mecs:"res,opt" Optional resource (nil if not registered)
package mecs

// Version is the MECS version.
const Version = "0.3.0"
