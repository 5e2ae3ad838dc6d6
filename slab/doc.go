// Package slab implements a geometric-family slab allocator over a single
// bounded memory arena, together with an online page rebalancer and an
// automatic move policy, modeled after the memory subsystem at the heart
// of an in-memory key/value cache server.
//
// The package owns chunks grouped into size classes ("slab classes"); it
// does not own items, keys, or a hash table — those live in an external
// collaborator reached only through the Hooks interface.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package slab
