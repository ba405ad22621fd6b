/*Package tabix reads and writes tabix (.tbi) indexes for bgzf-compressed,
  coordinate-sorted text files, and answers region queries against them.

  Only the generic preset is produced.  Split-count and discordant-pair
  evidence files use PointConf: sequence name in column 1, 1-based position
  in column 2.
*/
package tabix
