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

/*
bio-pesr tests structural variant calls for read evidence.  For every record
of a VCF it compares the evidence of the samples called as carriers against
a background of non-carriers, and writes one row per test:

  bio-pesr sr-test calls.vcf.gz splits.txt.gz out.tsv
  bio-pesr pe-test calls.vcf.gz disc.txt.gz out.tsv
  bio-pesr pesr-test calls.vcf.gz splits.txt.gz disc.txt.gz out.tsv

Split-count and discordant-pair files must be bgzipped and tabix indexed;
"bio-pesr index" converts sorted text files.  Output columns are name,
coord, pos, significance, and the called and background medians.  Output
paths ending in .gz are bgzipped.
*/
package main
