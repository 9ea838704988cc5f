// Package ioutils provides file system and image processing utilities.
//
// # File Operations
//
//	err := ioutils.CheckWritable("/music")          // setup check for the output dir
//	ok, err := ioutils.Exists("/music/Song - A.mp3") // dedup check
//	err = ioutils.WriteFileAtomic(path, data)      // playlists
//
// # Image Processing
//
// The ImageService prepares cover art for embedding:
//
//	svc := ioutils.NewImageService()
//	data, mime, err := svc.PrepareCover(ctx, raw, ioutils.CoverOptions{
//	    Resize: true, MaxSize: 1000, ConvertToJPEG: true,
//	})
package ioutils
