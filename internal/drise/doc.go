// Package drise computes detector saliency maps by random input masking.
//
// For each of N random masks the package blacks out part of the input image, runs the
// detector on the result and measures how well the masked detections still match each
// target detection. A mask that preserves a target contributes its pixels to that
// target's map with the match score as weight:
//
//	saliency_t(p) = 1/N * sum_i mask_i(p) * affinity(target_t, detect(image * mask_i))
//
// Affinity combines box overlap (IoU), class agreement (cosine similarity of class-score
// vectors) and objectness, taking the best masked detection.
//
// # Masks
//
// A mask is a coarse grid of cells kept with a fixed probability, bilinearly upsampled to
// slightly more than the image size and cropped at a random offset so cell borders do not
// line up across masks. Values lie in [0, 1].
//
// # Concurrency
//
// Masks are evaluated by a bounded pool of workers. Each worker accumulates into its own
// buffers which are summed after all workers finish. Mask i always comes from a generator
// seeded with Seed+i, so the masks do not depend on which worker draws them.
package drise
