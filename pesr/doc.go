// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pesr tests structural-variant breakpoint calls against per-sample
// read evidence.
//
// For every breakpoint end, SRTest scans the positions within Opts.Window
// of the predicted coordinate, compares the median number of clipped reads
// in the samples called as carriers against a background sample set with a
// one-sided Poisson test, and keeps the best-supported position.  The two
// ends are then retested jointly on their summed medians.  PETest does the
// same for discordant read pairs spanning both ends.
//
// Each record yields a fixed set of rows:
//
//   name  coord  pos  significance  called_median  bg_median
//
// with coord posA, posB and sum for the split-read test, pe for the
// paired-end test, and pesr for the combination of the two.
package pesr
