/*
 * Copyright (c) 2025 Briefer contributors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package layout implements the structural engine for notebook documents:
// the ordered sequence of block groups, the tabs inside each group, and the
// operation set that mutates them (add, remove, duplicate, group, ungroup,
// reorder, move between groups, visibility, tab selection).
//
// The engine is substrate-agnostic. It talks to the replicated document
// through three small capabilities: a block mapping (BlockStore), an ordered
// group sequence (GroupSequence) and a transaction boundary (Store.Transact).
// Every multi-step operation runs inside one transaction so no reader ever
// observes an intermediate state, e.g. a group left with zero tabs.
//
// Destructive operations are two-phase: a dry run consults the dashboard
// reference collaborator and returns a tagged conflict result instead of
// mutating; callers re-invoke with force=true to proceed.
package layout
