/*Package interval implements interval-union operations for sets of genomic
  coordinates, typically loaded from BED files or samtools-style region
  strings.
  (Note the 'union'.  Overlapping intervals are merged, not tracked
  separately.)
  It assumes every position fits in a PosType, which is currently defined as
  int32.
*/
package interval
