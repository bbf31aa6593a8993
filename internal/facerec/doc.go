// Package facerec wraps the dlib face recognition models behind a
// small detector API.
//
// A Recognizer loads the dlib shape predictor, the ResNet embedding
// network, and the CNN detector weights from the configured model
// directory. DetectAll finds faces in camera frames and computes
// their 128-dimensional embeddings; EmbedPhoto does the same for an
// enrollment photo that must contain exactly one face. Embeddings
// round-trip to the database through EncodeDescriptor and
// DecodeDescriptor.
package facerec
