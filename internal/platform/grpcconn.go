package platform

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCConnection deals with the client-side connection to the internal
// ProjectionQuery service, grounded on common/mgrpc.
type GRPCConnection struct {
	Addr string
	Conn *grpc.ClientConn
}

// Connect dials the target address with insecure transport credentials,
// matching the teacher's internal-network assumption (mTLS is terminated
// at the mesh sidecar, not in application code).
func (c *GRPCConnection) Connect() error {
	conn, err := grpc.NewClient(c.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial grpc %s: %w", c.Addr, err)
	}

	c.Conn = conn

	return nil
}

// GetNewClient returns the connection, dialing lazily if necessary.
func (c *GRPCConnection) GetNewClient() (*grpc.ClientConn, error) {
	if c.Conn == nil {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	return c.Conn, nil
}
