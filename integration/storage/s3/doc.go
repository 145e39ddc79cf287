// Package s3 writes objects to Amazon S3 and S3-compatible services such as
// MinIO or Wasabi, using the AWS SDK v2.
//
// Storage satisfies consumer.ObjectWriter, which makes it a dead-letter
// archive:
//
//	store, err := s3.New(ctx, s3.Config{
//		Bucket:         "eventbridge-dead-letters",
//		Region:         "us-east-1",
//		Endpoint:       "http://localhost:9000",
//		ForcePathStyle: true,
//	})
//	sink := consumer.NewObjectSink(store, "dead-letters")
//
// SDK errors are classified into package errors (ErrObjectNotFound,
// ErrAccessDenied, ErrServiceUnavailable and others) that keep the original
// error wrapped for logging.
package s3
