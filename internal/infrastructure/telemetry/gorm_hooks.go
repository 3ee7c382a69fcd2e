package telemetry

import (
	"fmt"

	"gorm.io/gorm"
)

// gormOperations lists the callback chains instrumented by the GORM plugins.
var gormOperations = []string{"create", "query", "update", "delete", "row", "raw"}

type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// gormHooks returns the before and after registrars for one callback chain.
func gormHooks(db *gorm.DB, op string) (before, after callbackRegistrar) {
	cb := db.Callback()
	anchor := "gorm:" + op
	switch op {
	case "create":
		return cb.Create().Before(anchor), cb.Create().After(anchor)
	case "query":
		return cb.Query().Before(anchor), cb.Query().After(anchor)
	case "update":
		return cb.Update().Before(anchor), cb.Update().After(anchor)
	case "delete":
		return cb.Delete().Before(anchor), cb.Delete().After(anchor)
	case "row":
		return cb.Row().Before(anchor), cb.Row().After(anchor)
	default:
		return cb.Raw().Before(anchor), cb.Raw().After(anchor)
	}
}

// registerGormHooks installs before/after on every instrumented chain under
// "{prefix}:before_{op}" and "{prefix}:after_{op}".
func registerGormHooks(db *gorm.DB, prefix string, before func(*gorm.DB), after func(op string) func(*gorm.DB)) error {
	for _, op := range gormOperations {
		b, a := gormHooks(db, op)
		if err := b.Register(fmt.Sprintf("%s:before_%s", prefix, op), before); err != nil {
			return err
		}
		if err := a.Register(fmt.Sprintf("%s:after_%s", prefix, op), after(op)); err != nil {
			return err
		}
	}
	return nil
}
