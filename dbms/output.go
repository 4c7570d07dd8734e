// Package dbms drives server-side DBMS packages through the shim connection
// they were enabled on.
package dbms

import (
	"context"
	"io"

	pdo_oci8 "github.com/nineinchnick/pdo-oci8"
)

const (
	MaxBufferSize = 0x7FFF
	MinBufferSize = 2000
)

const getLinesText = `declare
	l_line varchar2(255);
	l_done number;
	l_buffer long;
begin
 loop
 exit when length(l_buffer)+255 > :maxbytes OR l_done = 1;
 dbms_output.get_line( l_line, l_done );
 if length(l_line) > 0 then
 	l_buffer := l_buffer || l_line || chr(10);
 end if;
 end loop;
 :done := l_done;
 :buffer := l_buffer;
end;`

// Output captures DBMS_OUTPUT lines produced by PL/SQL run on one connection
// between EnableOutput and Close.
type Output struct {
	conn       *pdo_oci8.Connection
	bufferSize int
}

// EnableOutput turns the session's output buffer on. The size is clamped to
// the range the server accepts.
func EnableOutput(ctx context.Context, conn *pdo_oci8.Connection, bufferSize int) (*Output, error) {
	if bufferSize > MaxBufferSize {
		bufferSize = MaxBufferSize
	}
	if bufferSize < MinBufferSize {
		bufferSize = MinBufferSize
	}
	stmt, err := conn.Prepare(ctx, "begin dbms_output.enable(:size_limit); end;")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	if err = stmt.Execute(ctx, map[string]interface{}{"size_limit": bufferSize}); err != nil {
		return nil, err
	}
	return &Output{conn: conn, bufferSize: bufferSize}, nil
}

// GetOutput drains the lines buffered since the previous call.
func (output *Output) GetOutput(ctx context.Context) (string, error) {
	stmt, err := output.conn.Prepare(ctx, getLinesText)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	var (
		buffer string
		done   int64
	)
	if err = stmt.BindValue("maxbytes", output.bufferSize, pdo_oci8.ParamInt); err != nil {
		return "", err
	}
	if err = stmt.BindParam("done", &done, pdo_oci8.ParamInt|pdo_oci8.ParamInOut, 0, nil); err != nil {
		return "", err
	}
	if err = stmt.BindParam("buffer", &buffer, pdo_oci8.ParamStr|pdo_oci8.ParamInOut, output.bufferSize, nil); err != nil {
		return "", err
	}
	if err = stmt.Execute(ctx, nil); err != nil {
		return "", err
	}
	return buffer, nil
}

// Print writes the drained lines to w.
func (output *Output) Print(ctx context.Context, w io.StringWriter) error {
	lines, err := output.GetOutput(ctx)
	if err != nil {
		return err
	}
	_, err = w.WriteString(lines)
	return err
}

// Close disables the session's output buffer.
func (output *Output) Close(ctx context.Context) error {
	stmt, err := output.conn.Prepare(ctx, "begin dbms_output.disable; end;")
	if err != nil {
		return err
	}
	defer stmt.Close()
	return stmt.Execute(ctx, nil)
}
