package cchash

import "github.com/scaletable/cchash/logger"

// Logger is the logging interface a Map reports growth and migration
// events through. It is the teacher's decoupled logger.Logger interface
// (github.com/scaletable/cchash/logger), kept separate from any concrete
// backend so this package never forces glog (or any other logger) on a
// caller that doesn't already use it.
type Logger = logger.Logger

// nopLogger is the default Logger a Map uses when WithLogger is not
// supplied.
type nopLogger struct{}

func (nopLogger) Info(args ...interface{})                 {}
func (nopLogger) Infof(format string, args ...interface{})  {}
func (nopLogger) Error(args ...interface{})                 {}
func (nopLogger) Errorf(format string, args ...interface{}) {}
func (nopLogger) Fatal(args ...interface{})                 {}
func (nopLogger) Fatalf(format string, args ...interface{}) {}
