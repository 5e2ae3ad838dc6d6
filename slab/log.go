package slab

import "github.com/golang/glog"

// Thin wrappers over glog's Warningf/Infof/Errorf. They are not the only
// route to glog in this package: alloc.go and rebalance.go also call
// glog.Fatalf/glog.Warningf directly.
func logWarningf(format string, args ...interface{}) { glog.Warningf(format, args...) }
func logInfof(format string, args ...interface{})    { glog.Infof(format, args...) }
func logErrorf(format string, args ...interface{})   { glog.Errorf(format, args...) }
